package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Users         UserRepository
	Departments   DepartmentRepository
	Groups        DepartmentGroupRepository
	Mappings      OrgMappingRepository
	Cases         CaseRepository
	Actions       CaseActionRepository
	Notifications NotificationRepository
	Deliveries    DeliveryRepository
	Settings      SettingsRepository
}

// Store is the single transaction boundary of the service.
type Store interface {
	// Repos returns repositories that autocommit each statement.
	Repos() Repositories
	// WithinTx runs fn against repositories bound to one transaction. The
	// transaction commits only when fn returns nil.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Departments:   NewDepartmentRepository(db),
		Groups:        NewDepartmentGroupRepository(db),
		Mappings:      NewOrgMappingRepository(db),
		Cases:         NewCaseRepository(db),
		Actions:       NewCaseActionRepository(db),
		Notifications: NewNotificationRepository(db),
		Deliveries:    NewDeliveryRepository(db),
		Settings:      NewSettingsRepository(db),
	}
}

type postgresStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewPostgresStore builds a Store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool, repos: NewRepositories(pool)}
}

func (s *postgresStore) Repos() Repositories {
	return s.repos
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
