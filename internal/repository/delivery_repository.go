package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// DeliveryRepository is the outbound mail ledger.
type DeliveryRepository interface {
	// Create inserts a record whose ID is assigned by the caller.
	Create(ctx context.Context, record *domain.DeliveryRecord) error
	Update(ctx context.Context, record *domain.DeliveryRecord) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	List(ctx context.Context, status *domain.DeliveryStatus, limit, offset int) ([]domain.DeliveryRecord, error)
}

type deliveryRepository struct {
	db DBTX
}

// NewDeliveryRepository constructs the ledger repository.
func NewDeliveryRepository(db DBTX) DeliveryRepository {
	return &deliveryRepository{db: db}
}

const deliveryColumns = `id, subject, recipients, html_body, text_body, status, error, retry_count, created_at, completed_at`

func (r *deliveryRepository) Create(ctx context.Context, record *domain.DeliveryRecord) error {
	const query = `
        INSERT INTO delivery_records (id, subject, recipients, html_body, text_body, status, error, retry_count)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		record.ID,
		record.Subject,
		record.Recipients,
		record.HTMLBody,
		record.TextBody,
		string(record.Status),
		record.Error,
		record.RetryCount,
	).Scan(&record.CreatedAt)
}

func (r *deliveryRepository) Update(ctx context.Context, record *domain.DeliveryRecord) error {
	const query = `
        UPDATE delivery_records SET status=$1, error=$2, retry_count=$3, completed_at=$4
        WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query,
		string(record.Status),
		record.Error,
		record.RetryCount,
		record.CompletedAt,
		record.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *deliveryRepository) GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records WHERE id=$1`
	return scanDelivery(r.db.QueryRow(ctx, query, id))
}

func (r *deliveryRepository) List(ctx context.Context, status *domain.DeliveryStatus, limit, offset int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records
        WHERE ($1::text IS NULL OR status = $1)
        ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeliveryRecord
	for rows.Next() {
		record, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func scanDelivery(row pgx.Row) (*domain.DeliveryRecord, error) {
	var (
		record domain.DeliveryRecord
		status string
	)
	if err := row.Scan(
		&record.ID,
		&record.Subject,
		&record.Recipients,
		&record.HTMLBody,
		&record.TextBody,
		&status,
		&record.Error,
		&record.RetryCount,
		&record.CreatedAt,
		&record.CompletedAt,
	); err != nil {
		return nil, err
	}
	record.Status = domain.DeliveryStatus(status)
	return &record, nil
}
