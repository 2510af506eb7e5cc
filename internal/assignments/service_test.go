package assignments

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/principals"
	"github.com/jobready/accesscore/internal/roles"
	"github.com/jobready/accesscore/internal/shared"
)

type ledgerKey struct {
	principalID uuid.UUID
	roleID      int64
}

type memoryLedger struct {
	nextID int64
	rows   map[ledgerKey]Assignment
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[ledgerKey]Assignment)}
}

func (l *memoryLedger) Upsert(ctx context.Context, principalID uuid.UUID, roleID int64, assignedBy *uuid.UUID) (Assignment, error) {
	key := ledgerKey{principalID, roleID}
	if existing, ok := l.rows[key]; ok {
		if existing.Status == shared.StatusInactive {
			existing.Status = shared.StatusActive
			existing.AssignedBy = assignedBy
			existing.AssignedAt = time.Now()
			l.rows[key] = existing
		}
		return l.rows[key], nil
	}
	l.nextID++
	row := Assignment{
		ID:          l.nextID,
		PrincipalID: principalID,
		RoleID:      roleID,
		AssignedBy:  assignedBy,
		Status:      shared.StatusActive,
		AssignedAt:  time.Now(),
	}
	l.rows[key] = row
	return row, nil
}

func (l *memoryLedger) Deactivate(ctx context.Context, principalID uuid.UUID, roleID int64) error {
	key := ledgerKey{principalID, roleID}
	row, ok := l.rows[key]
	if !ok || row.Status != shared.StatusActive {
		return shared.ErrNotFound
	}
	row.Status = shared.StatusInactive
	l.rows[key] = row
	return nil
}

func (l *memoryLedger) ListForPrincipal(ctx context.Context, principalID uuid.UUID, activeOnly bool) ([]RoleGrant, error) {
	grants := []RoleGrant{}
	for _, row := range l.rows {
		if row.PrincipalID != principalID {
			continue
		}
		if activeOnly && row.Status != shared.StatusActive {
			continue
		}
		grants = append(grants, RoleGrant{Assignment: row})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	return grants, nil
}

func (l *memoryLedger) CountActivePerRole(ctx context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)
	for _, row := range l.rows {
		if row.Status == shared.StatusActive {
			counts[row.RoleID]++
		}
	}
	return counts, nil
}

type stubPrincipals struct {
	known map[uuid.UUID]principals.Principal
}

func (s *stubPrincipals) Get(ctx context.Context, id uuid.UUID) (principals.Principal, error) {
	p, ok := s.known[id]
	if !ok {
		return principals.Principal{}, shared.ErrNotFound
	}
	return p, nil
}

type stubRoles struct {
	known map[int64]roles.Role
}

func (s *stubRoles) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	r, ok := s.known[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return r, nil
}

type recordingInvalidator struct {
	ids []uuid.UUID
}

func (r *recordingInvalidator) InvalidatePrincipal(ctx context.Context, id uuid.UUID) {
	r.ids = append(r.ids, id)
}

func fixtures() (*memoryLedger, *stubPrincipals, *stubRoles, uuid.UUID) {
	alice := uuid.New()
	ledger := newMemoryLedger()
	principalPort := &stubPrincipals{known: map[uuid.UUID]principals.Principal{
		alice: {ID: alice, Email: "alice@accesscore.local", Status: shared.StatusActive},
	}}
	rolePort := &stubRoles{known: map[int64]roles.Role{
		1: {ID: 1, Name: "editor", Status: shared.StatusActive},
		2: {ID: 2, Name: "retired", Status: shared.StatusInactive},
	}}
	return ledger, principalPort, rolePort, alice
}

func TestAssignRoleIdempotent(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	inval := &recordingInvalidator{}
	svc := NewService(ledger, principalPort, rolePort, nil, inval, nil)
	ctx := context.Background()

	first, err := svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	require.Equal(t, shared.StatusActive, first.Status)

	second, err := svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, ledger.rows, 1)
	require.Len(t, inval.ids, 2)
}

func TestAssignRoleValidation(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	svc := NewService(ledger, principalPort, rolePort, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, uuid.New(), 1, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.AssignRole(ctx, alice, 99, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.AssignRole(ctx, alice, 2, nil)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, ledger.rows)
}

func TestUnassignRole(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	inval := &recordingInvalidator{}
	svc := NewService(ledger, principalPort, rolePort, nil, inval, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.UnassignRole(ctx, alice, 1), shared.ErrNotFound)

	_, err := svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	require.NoError(t, svc.UnassignRole(ctx, alice, 1))

	// The row survives deactivation for audit history.
	require.Len(t, ledger.rows, 1)
	require.Equal(t, shared.StatusInactive, ledger.rows[ledgerKey{alice, 1}].Status)

	require.ErrorIs(t, svc.UnassignRole(ctx, alice, 1), shared.ErrNotFound)
}

func TestReassignReactivatesRow(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	svc := NewService(ledger, principalPort, rolePort, nil, nil, nil)
	ctx := context.Background()

	operator := uuid.New()
	first, err := svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	require.NoError(t, svc.UnassignRole(ctx, alice, 1))

	again, err := svc.AssignRole(ctx, alice, 1, &operator)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, shared.StatusActive, again.Status)
	require.NotNil(t, again.AssignedBy)
	require.Equal(t, operator, *again.AssignedBy)
}

func TestListRolesForPrincipal(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	svc := NewService(ledger, principalPort, rolePort, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ListRolesForPrincipal(ctx, uuid.New(), false)
	require.ErrorIs(t, err, shared.ErrNotFound)

	grants, err := svc.ListRolesForPrincipal(ctx, alice, false)
	require.NoError(t, err)
	require.NotNil(t, grants)
	require.Empty(t, grants)

	_, err = svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	require.NoError(t, svc.UnassignRole(ctx, alice, 1))

	grants, err = svc.ListRolesForPrincipal(ctx, alice, true)
	require.NoError(t, err)
	require.Empty(t, grants)

	grants, err = svc.ListRolesForPrincipal(ctx, alice, false)
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestCountActiveAssignmentsPerRole(t *testing.T) {
	ledger, principalPort, rolePort, alice := fixtures()
	bob := uuid.New()
	principalPort.known[bob] = principals.Principal{ID: bob, Status: shared.StatusActive}
	svc := NewService(ledger, principalPort, rolePort, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, alice, 1, nil)
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, bob, 1, nil)
	require.NoError(t, err)
	require.NoError(t, svc.UnassignRole(ctx, bob, 1))

	counts, err := svc.CountActiveAssignmentsPerRole(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int64]int{1: 1}, counts)
}
