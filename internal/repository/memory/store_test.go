package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	creator := &domain.User{Name: "U", Email: "u@example.com", Role: domain.RoleRegularUser, Active: true}
	if err := store.Repos().Users.Create(ctx, creator); err != nil {
		t.Fatalf("create user: %v", err)
	}
	c := &domain.Case{Code: "DOF-1", Title: "leak", CreatorID: creator.ID}
	if err := store.Repos().Cases.Create(ctx, c); err != nil {
		t.Fatalf("create case: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Cases.GetForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.CaseStatusSubmitted
		if err := repos.Cases.Update(ctx, locked); err != nil {
			return err
		}
		old, next := domain.CaseStatusDraft, domain.CaseStatusSubmitted
		if err := repos.Actions.Create(ctx, &domain.CaseAction{CaseID: c.ID, ActorID: creator.ID, OldStatus: &old, NewStatus: &next}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	reloaded, err := store.Repos().Cases.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != domain.CaseStatusDraft {
		t.Fatalf("status leaked out of rolled back tx: %s", reloaded.Status)
	}
	if n, _ := store.Repos().Actions.CountByCase(ctx, c.ID); n != 0 {
		t.Fatalf("expected no actions after rollback, got %d", n)
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	err := store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Departments.Create(ctx, &domain.Department{Name: "Kanyon", IsActive: true})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	depts, err := store.Repos().Departments.ListActive(ctx)
	if err != nil || len(depts) != 1 {
		t.Fatalf("expected committed department, got %v %v", depts, err)
	}
}

func TestMissingRowsMatchPostgres(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repos()

	if _, err := repos.Cases.GetByID(ctx, "nope"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := repos.Notifications.SetRead(ctx, "nope", "u", true); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	settings, err := repos.Settings.GetMailSettings(ctx)
	if err != nil || settings.Configured() {
		t.Fatalf("expected empty settings, got %+v %v", settings, err)
	}
}

func TestCaseListVisibility(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repos()

	kanyon, other := "dept-kanyon", "dept-other"
	cases := []*domain.Case{
		{Code: "A", CreatorID: "alice", Status: domain.CaseStatusDraft},
		{Code: "B", CreatorID: "bob", DepartmentID: &kanyon, Status: domain.CaseStatusAssigned},
		{Code: "C", CreatorID: "bob", DepartmentID: &other, AssigneeID: strPtr("alice"), Status: domain.CaseStatusAssigned},
		{Code: "D", CreatorID: "bob", DepartmentID: &other, Status: domain.CaseStatusAssigned},
	}
	for _, c := range cases {
		if err := repos.Cases.Create(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Code, err)
		}
	}

	got, err := repos.Cases.List(ctx, repository.CaseFilter{VisibleTo: "alice", DepartmentIDs: []string{kanyon}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	codes := map[string]bool{}
	for _, c := range got {
		codes[c.Code] = true
	}
	if len(codes) != 3 || !codes["A"] || !codes["B"] || !codes["C"] {
		t.Fatalf("unexpected visible set %v", codes)
	}

	all, _ := repos.Cases.List(ctx, repository.CaseFilter{Unrestricted: true, Limit: 100})
	if len(all) != 4 {
		t.Fatalf("expected 4 cases unrestricted, got %d", len(all))
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	// Wednesday
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	repos := store.Repos()

	dept := "d1"
	at := func(d time.Duration) *time.Time { ts := now.Add(d); return &ts }
	seed := []domain.Case{
		{Code: "open-no-deadline", Status: domain.CaseStatusAssigned},
		{Code: "overdue", Status: domain.CaseStatusPlanning, Deadline: at(-time.Hour)},
		{Code: "upcoming", Status: domain.CaseStatusImplementation, Deadline: at(72 * time.Hour)},
		{Code: "far", Status: domain.CaseStatusAssigned, Deadline: at(30 * 24 * time.Hour)},
		{Code: "closed-tuesday", Status: domain.CaseStatusClosed, ClosedAt: at(-36 * time.Hour)},
		{Code: "closed-last-week", Status: domain.CaseStatusClosed, ClosedAt: at(-6 * 24 * time.Hour)},
		{Code: "rejected", Status: domain.CaseStatusRejected, Deadline: at(-time.Hour)},
	}
	for i := range seed {
		seed[i].DepartmentID = &dept
		seed[i].CreatorID = "u"
		if err := repos.Cases.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats, err := repos.Cases.Statistics(ctx, []string{dept}, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.CaseStatistics{Open: 4, ClosedThisWeek: 1, UpcomingDeadline: 1, Overdue: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}

	empty, _ := repos.Cases.Statistics(ctx, nil, now)
	if empty != (domain.CaseStatistics{}) {
		t.Fatalf("expected zero stats for no departments, got %+v", empty)
	}
}

func TestReplaceMappings(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repos()

	if err := repos.Mappings.ReplaceUserDepartments(ctx, "gm", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := repos.Mappings.ReplaceUserDepartments(ctx, "gm", []string{"c"}); err != nil {
		t.Fatal(err)
	}
	ids, _ := repos.Mappings.ListDepartmentIDsByUser(ctx, "gm")
	if len(ids) != 1 || ids[0] != "c" {
		t.Fatalf("expected mapping replaced wholesale, got %v", ids)
	}
}
