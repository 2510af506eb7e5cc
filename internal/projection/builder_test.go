package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/shared"
)

type stubSnapshotRepo struct {
	records map[uuid.UUID]PrincipalRecord
}

func (s *stubSnapshotRepo) FetchPrincipal(ctx context.Context, id uuid.UUID) (PrincipalRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return PrincipalRecord{}, shared.ErrNotFound
	}
	return record, nil
}

func TestBuildPrincipalView(t *testing.T) {
	alice := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &stubSnapshotRepo{records: map[uuid.UUID]PrincipalRecord{
		alice: {
			ID:       alice,
			Email:    "alice@accesscore.local",
			FullName: "Alice Reyes",
			Status:   shared.StatusActive,
			Grants: []GrantRecord{
				{RoleName: "editor", AssignedAt: base, Tokens: []string{"doc:read", "doc:write"}},
				{RoleName: "viewer", AssignedAt: base.Add(time.Hour), Tokens: []string{"doc:read"}},
				{RoleName: "auditor", AssignedAt: base.Add(2 * time.Hour), Tokens: []string{"audit:view"}},
			},
		},
	}}
	builder := NewBuilder(repo)

	view, err := builder.BuildPrincipalView(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, "alice@accesscore.local", view.Email)

	// Role names keep assignment order.
	require.Equal(t, []string{"editor", "viewer", "auditor"}, view.RoleNames)

	// Token union is deduplicated, first occurrence wins its place.
	require.Equal(t, []string{"doc:read", "doc:write", "audit:view"}, view.Permissions)
}

func TestBuildPrincipalViewEmptyGrants(t *testing.T) {
	bob := uuid.New()
	repo := &stubSnapshotRepo{records: map[uuid.UUID]PrincipalRecord{
		bob: {ID: bob, Email: "bob@accesscore.local", Status: shared.StatusActive},
	}}
	builder := NewBuilder(repo)

	view, err := builder.BuildPrincipalView(context.Background(), bob)
	require.NoError(t, err)
	require.NotNil(t, view.RoleNames)
	require.Empty(t, view.RoleNames)
	require.NotNil(t, view.Permissions)
	require.Empty(t, view.Permissions)
}

func TestBuildPrincipalViewUnknown(t *testing.T) {
	repo := &stubSnapshotRepo{records: map[uuid.UUID]PrincipalRecord{}}
	builder := NewBuilder(repo)

	_, err := builder.BuildPrincipalView(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBuildPrincipalViewImmutableCopy(t *testing.T) {
	carol := uuid.New()
	record := PrincipalRecord{
		ID:     carol,
		Status: shared.StatusActive,
		Grants: []GrantRecord{{RoleName: "operator", Tokens: []string{"ops:run"}}},
	}
	repo := &stubSnapshotRepo{records: map[uuid.UUID]PrincipalRecord{carol: record}}
	builder := NewBuilder(repo)

	view, err := builder.BuildPrincipalView(context.Background(), carol)
	require.NoError(t, err)

	// Mutating the source snapshot must not leak into the view.
	record.Grants[0].Tokens[0] = "ops:mutated"
	require.Equal(t, []string{"ops:run"}, view.Permissions)
}
