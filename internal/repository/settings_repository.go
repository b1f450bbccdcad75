package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// SettingsRepository stores the single mail settings row.
type SettingsRepository interface {
	// GetMailSettings returns zero settings when nothing has been saved yet.
	GetMailSettings(ctx context.Context) (domain.MailSettings, error)
	SaveMailSettings(ctx context.Context, settings *domain.MailSettings) error
}

type settingsRepository struct {
	db DBTX
}

// NewSettingsRepository builds repository.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetMailSettings(ctx context.Context) (domain.MailSettings, error) {
	const query = `
        SELECT host, port, use_tls, use_ssl, username, password, default_sender, updated_at
        FROM mail_settings WHERE id = 1`
	var s domain.MailSettings
	err := r.db.QueryRow(ctx, query).Scan(
		&s.Host,
		&s.Port,
		&s.UseTLS,
		&s.UseSSL,
		&s.Username,
		&s.Password,
		&s.DefaultSender,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MailSettings{}, nil
	}
	return s, err
}

func (r *settingsRepository) SaveMailSettings(ctx context.Context, s *domain.MailSettings) error {
	const query = `
        INSERT INTO mail_settings (id, host, port, use_tls, use_ssl, username, password, default_sender, updated_at)
        VALUES (1,$1,$2,$3,$4,$5,$6,$7,NOW())
        ON CONFLICT (id) DO UPDATE SET
            host=EXCLUDED.host, port=EXCLUDED.port, use_tls=EXCLUDED.use_tls, use_ssl=EXCLUDED.use_ssl,
            username=EXCLUDED.username, password=EXCLUDED.password, default_sender=EXCLUDED.default_sender,
            updated_at=NOW()
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		s.Host,
		s.Port,
		s.UseTLS,
		s.UseSSL,
		s.Username,
		s.Password,
		s.DefaultSender,
	).Scan(&s.UpdatedAt)
}
