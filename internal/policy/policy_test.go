package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
)

type fakeDirectory struct {
	users map[uint]*model.User
	teams map[string][]uint
	err   error
}

func (f *fakeDirectory) UserByID(ctx context.Context, id uint) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeDirectory) TeamMemberIDs(ctx context.Context, team string) ([]uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.teams[team], nil
}

func uintPtr(v uint) *uint { return &v }

func TestScopeFor_AdminUnrestricted(t *testing.T) {
	e := NewEvaluator(&fakeDirectory{})
	scope, err := e.ScopeFor(context.Background(), Identity{ID: 1, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if !scope.All {
		t.Fatalf("expected unrestricted scope for admin, got %+v", scope)
	}
}

func TestScopeFor_UserOwnTasksOnly(t *testing.T) {
	e := NewEvaluator(&fakeDirectory{})
	scope, err := e.ScopeFor(context.Background(), Identity{ID: 7, Role: model.RoleUser})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.All || scope.ActorID != 7 || len(scope.TeamMemberIDs) != 0 {
		t.Fatalf("unexpected scope for user role: %+v", scope)
	}
}

func TestScopeFor_ManagerWithTeam(t *testing.T) {
	dir := &fakeDirectory{
		users: map[uint]*model.User{
			2: {ID: 2, Role: model.RoleManager, Team: "engineering"},
		},
		teams: map[string][]uint{
			"engineering": {2, 5, 9},
		},
	}
	e := NewEvaluator(dir)

	scope, err := e.ScopeFor(context.Background(), Identity{ID: 2, Role: model.RoleManager})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.All {
		t.Fatalf("manager scope must not be unrestricted")
	}
	if scope.ActorID != 2 {
		t.Fatalf("expected actor id 2, got %d", scope.ActorID)
	}
	if len(scope.TeamMemberIDs) != 3 {
		t.Fatalf("expected 3 team member ids, got %v", scope.TeamMemberIDs)
	}
}

func TestScopeFor_ManagerWithoutTeam(t *testing.T) {
	dir := &fakeDirectory{
		users: map[uint]*model.User{
			2: {ID: 2, Role: model.RoleManager},
		},
	}
	e := NewEvaluator(dir)

	scope, err := e.ScopeFor(context.Background(), Identity{ID: 2, Role: model.RoleManager})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.All || scope.ActorID != 2 || len(scope.TeamMemberIDs) != 0 {
		t.Fatalf("manager without team must fall back to own scope: %+v", scope)
	}
}

func TestScopeFor_ManagerMissingRecord(t *testing.T) {
	e := NewEvaluator(&fakeDirectory{})
	scope, err := e.ScopeFor(context.Background(), Identity{ID: 3, Role: model.RoleManager})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.All || scope.ActorID != 3 || len(scope.TeamMemberIDs) != 0 {
		t.Fatalf("missing manager record must fall back to own scope: %+v", scope)
	}
}

func TestScopeFor_DirectoryError(t *testing.T) {
	dirErr := errors.New("store down")
	e := NewEvaluator(&fakeDirectory{err: dirErr})
	_, err := e.ScopeFor(context.Background(), Identity{ID: 2, Role: model.RoleManager})
	if !errors.Is(err, dirErr) {
		t.Fatalf("expected directory error to propagate, got %v", err)
	}
}

func TestCanView(t *testing.T) {
	task := &model.Task{ID: 1, CreatedBy: 10, AssignedTo: uintPtr(20)}

	cases := []struct {
		name  string
		actor Identity
		want  bool
	}{
		{"user creator", Identity{ID: 10, Role: model.RoleUser}, true},
		{"user assignee", Identity{ID: 20, Role: model.RoleUser}, true},
		{"user unrelated", Identity{ID: 30, Role: model.RoleUser}, false},
		{"manager unrelated", Identity{ID: 30, Role: model.RoleManager}, true},
		{"admin unrelated", Identity{ID: 30, Role: model.RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.actor, task); got != tc.want {
				t.Fatalf("CanView(%+v) = %v, want %v", tc.actor, got, tc.want)
			}
		})
	}
}

func TestCanView_UnassignedTask(t *testing.T) {
	task := &model.Task{ID: 1, CreatedBy: 10}
	if CanView(Identity{ID: 20, Role: model.RoleUser}, task) {
		t.Fatalf("unrelated user must not view an unassigned task")
	}
}

func TestCanMutate(t *testing.T) {
	task := &model.Task{ID: 1, CreatedBy: 10, AssignedTo: uintPtr(20)}

	cases := []struct {
		name  string
		actor Identity
		want  bool
	}{
		{"user creator", Identity{ID: 10, Role: model.RoleUser}, true},
		// 被指派人可以查看但不能修改
		{"user assignee", Identity{ID: 20, Role: model.RoleUser}, false},
		{"user unrelated", Identity{ID: 30, Role: model.RoleUser}, false},
		{"manager unrelated", Identity{ID: 30, Role: model.RoleManager}, true},
		{"admin unrelated", Identity{ID: 30, Role: model.RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanMutate(tc.actor, task); got != tc.want {
				t.Fatalf("CanMutate(%+v) = %v, want %v", tc.actor, got, tc.want)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":     "plain",
		"100%":      `100\%`,
		"a_b":       `a\_b`,
		`back\slash`: `back\\slash`,
		"%_%":       `\%\_\%`,
	}
	for input, want := range cases {
		if got := EscapeLike(input); got != want {
			t.Fatalf("EscapeLike(%q) = %q, want %q", input, got, want)
		}
	}
}
