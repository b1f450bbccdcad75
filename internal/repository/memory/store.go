// Package memory implements every repository on process memory. Transactions
// work on a cloned snapshot that replaces the live state only on commit.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
)

type state struct {
	users            map[string]domain.User
	departments      map[string]domain.Department
	groups           map[string]domain.DepartmentGroup
	groupDepartments map[string]map[string]struct{}
	userDepartments  map[string]timeSet
	directorManagers map[string]timeSet
	cases            map[string]domain.Case
	actions          []domain.CaseAction
	notifications    map[string]domain.Notification
	notificationSeq  []string
	deliveries       map[string]domain.DeliveryRecord
	mail             domain.MailSettings
}

func newState() *state {
	return &state{
		users:            map[string]domain.User{},
		departments:      map[string]domain.Department{},
		groups:           map[string]domain.DepartmentGroup{},
		groupDepartments: map[string]map[string]struct{}{},
		userDepartments:  map[string]timeSet{},
		directorManagers: map[string]timeSet{},
		cases:            map[string]domain.Case{},
		notifications:    map[string]domain.Notification{},
		deliveries:       map[string]domain.DeliveryRecord{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.departments {
		c.departments[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, set := range s.groupDepartments {
		inner := make(map[string]struct{}, len(set))
		for id := range set {
			inner[id] = struct{}{}
		}
		c.groupDepartments[k] = inner
	}
	for k, set := range s.userDepartments {
		c.userDepartments[k] = cloneTimes(set)
	}
	for k, set := range s.directorManagers {
		c.directorManagers[k] = cloneTimes(set)
	}
	for k, v := range s.cases {
		c.cases[k] = v
	}
	c.actions = append([]domain.CaseAction(nil), s.actions...)
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	c.notificationSeq = append([]string(nil), s.notificationSeq...)
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	c.mail = s.mail
	return c
}

// timeSet maps a related id to the time the association was created.
type timeSet map[string]time.Time

func cloneTimes(in timeSet) timeSet {
	out := make(timeSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store is an in-memory repository.Store. Transactions are serialized.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() repository.Repositories {
	return s.bind(&binding{store: s})
}

// WithinTx runs fn against a snapshot. The snapshot becomes the live state
// only when fn returns nil. Repositories obtained from Repos must not be used
// inside fn; they would wait for the transaction lock.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.bind(&binding{store: s, tx: snapshot})); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) bind(b *binding) repository.Repositories {
	return repository.Repositories{
		Users:         &userRepo{b},
		Departments:   &departmentRepo{b},
		Groups:        &groupRepo{b},
		Mappings:      &mappingRepo{b},
		Cases:         &caseRepo{b},
		Actions:       &actionRepo{b},
		Notifications: &notificationRepo{b},
		Deliveries:    &deliveryRepo{b},
		Settings:      &settingsRepo{b},
	}
}

// binding routes a repository call either to a transaction snapshot or to the
// live state under the store lock.
type binding struct {
	store *Store
	tx    *state
}

func (b *binding) do(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b *binding) now() time.Time {
	return b.store.now()
}

func newID() string {
	return uuid.NewString()
}

var _ repository.Store = (*Store)(nil)
