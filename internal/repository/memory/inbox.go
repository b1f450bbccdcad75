package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

type notificationRepo struct{ b *binding }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.users[n.UserID]; !ok {
			return fmt.Errorf("notifications: unknown user %s", n.UserID)
		}
		n.ID = newID()
		n.CreatedAt = r.b.now()
		st.notifications[n.ID] = *n
		st.notificationSeq = append(st.notificationSeq, n.ID)
		return nil
	})
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.b.do(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &n
		return nil
	})
	return out, err
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []domain.Notification
	err := r.b.do(func(st *state) error {
		skipped := 0
		for i := len(st.notificationSeq) - 1; i >= 0 && len(out) < limit; i-- {
			n := st.notifications[st.notificationSeq[i]]
			if n.UserID != userID || (unreadOnly && n.IsRead) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (r *notificationRepo) ListByCase(_ context.Context, caseID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.b.do(func(st *state) error {
		for _, id := range st.notificationSeq {
			n := st.notifications[id]
			if n.CaseID != nil && *n.CaseID == caseID {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r *notificationRepo) SetRead(_ context.Context, id, userID string, read bool) error {
	return r.b.do(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return pgx.ErrNoRows
		}
		n.IsRead = read
		st.notifications[id] = n
		return nil
	})
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string) (int, error) {
	changed := 0
	err := r.b.do(func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				n.IsRead = true
				st.notifications[id] = n
				changed++
			}
		}
		return nil
	})
	return changed, err
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.b.do(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

type deliveryRepo struct{ b *binding }

func (r *deliveryRepo) Create(_ context.Context, record *domain.DeliveryRecord) error {
	return r.b.do(func(st *state) error {
		if _, exists := st.deliveries[record.ID]; exists {
			return fmt.Errorf("delivery_records: duplicate id %s", record.ID)
		}
		record.CreatedAt = r.b.now()
		stored := *record
		stored.Recipients = append([]string(nil), record.Recipients...)
		st.deliveries[record.ID] = stored
		return nil
	})
}

func (r *deliveryRepo) Update(_ context.Context, record *domain.DeliveryRecord) error {
	return r.b.do(func(st *state) error {
		current, ok := st.deliveries[record.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		current.Status = record.Status
		current.Error = record.Error
		current.RetryCount = record.RetryCount
		current.CompletedAt = record.CompletedAt
		st.deliveries[record.ID] = current
		return nil
	})
}

func (r *deliveryRepo) GetByID(_ context.Context, id string) (*domain.DeliveryRecord, error) {
	var out *domain.DeliveryRecord
	err := r.b.do(func(st *state) error {
		record, ok := st.deliveries[id]
		if !ok {
			return pgx.ErrNoRows
		}
		record.Recipients = append([]string(nil), record.Recipients...)
		out = &record
		return nil
	})
	return out, err
}

func (r *deliveryRepo) List(_ context.Context, status *domain.DeliveryStatus, limit, offset int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []domain.DeliveryRecord
	err := r.b.do(func(st *state) error {
		for _, record := range st.deliveries {
			if status != nil && record.Status != *status {
				continue
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

type settingsRepo struct{ b *binding }

func (r *settingsRepo) GetMailSettings(_ context.Context) (domain.MailSettings, error) {
	var out domain.MailSettings
	err := r.b.do(func(st *state) error {
		out = st.mail
		return nil
	})
	return out, err
}

func (r *settingsRepo) SaveMailSettings(_ context.Context, settings *domain.MailSettings) error {
	return r.b.do(func(st *state) error {
		settings.UpdatedAt = r.b.now()
		st.mail = *settings
		return nil
	})
}
