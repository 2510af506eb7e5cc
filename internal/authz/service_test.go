package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobready/accesscore/internal/shared"
)

type stubGrantsRepo struct {
	grants map[uuid.UUID]Grants
	calls  int
}

func (s *stubGrantsRepo) Grants(ctx context.Context, principalID uuid.UUID) (Grants, error) {
	s.calls++
	g, ok := s.grants[principalID]
	if !ok {
		return Grants{}, shared.ErrNotFound
	}
	return g, nil
}

func TestEffectivePermissionsEmptySet(t *testing.T) {
	guest := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		guest: {PrincipalActive: true, RoleNames: []string{"guest"}},
	}}
	svc := NewService(repo, nil, nil, "")

	set, err := svc.EffectivePermissions(context.Background(), guest)
	require.NoError(t, err)
	require.True(t, set.Empty())
	require.False(t, set.Has("doc:read"))

	ok, err := svc.HasCapability(context.Background(), guest, "doc:read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEffectivePermissionsUnknownPrincipal(t *testing.T) {
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{}}
	svc := NewService(repo, nil, nil, "")

	_, err := svc.EffectivePermissions(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Capability checks degrade to a plain denial.
	ok, err := svc.HasCapability(context.Background(), uuid.New(), "doc:read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWildcardCollapsesToAllGranted(t *testing.T) {
	admin := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		admin: {PrincipalActive: true, RoleNames: []string{"admin"}, Tokens: []string{"*"}},
	}}
	svc := NewService(repo, nil, nil, "")

	set, err := svc.EffectivePermissions(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, set.All())
	require.True(t, set.Has("doc:read"))
	require.True(t, set.Has("anything:at:all"))
	require.False(t, set.Empty())
	require.Nil(t, set.Tokens())
}

func TestEffectivePermissionsUnion(t *testing.T) {
	editor := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		editor: {
			PrincipalActive: true,
			RoleNames:       []string{"editor", "viewer"},
			Tokens:          []string{"doc:read", "doc:write", "doc:read"},
		},
	}}
	svc := NewService(repo, nil, nil, "")

	set, err := svc.EffectivePermissions(context.Background(), editor)
	require.NoError(t, err)
	require.Equal(t, []string{"doc:read", "doc:write"}, set.Tokens())
	require.True(t, set.Has("doc:write"))
	require.False(t, set.Has("doc:delete"))
}

func TestIsAdmin(t *testing.T) {
	superuser := uuid.New()
	byRoleName := uuid.New()
	byToken := uuid.New()
	plain := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		superuser:  {PrincipalActive: true, Superuser: true},
		byRoleName: {PrincipalActive: true, RoleNames: []string{"admin"}},
		byToken:    {PrincipalActive: true, RoleNames: []string{"ops"}, Tokens: []string{"admin"}},
		plain:      {PrincipalActive: true, RoleNames: []string{"viewer"}, Tokens: []string{"doc:read"}},
	}}
	svc := NewService(repo, nil, nil, "admin")
	ctx := context.Background()

	for _, id := range []uuid.UUID{superuser, byRoleName, byToken} {
		ok, err := svc.IsAdmin(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := svc.IsAdmin(ctx, plain)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.IsAdmin(ctx, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsAdminCustomMarker(t *testing.T) {
	root := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		root: {PrincipalActive: true, RoleNames: []string{"root"}},
	}}
	svc := NewService(repo, nil, nil, "root")

	ok, err := svc.IsAdmin(context.Background(), root)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInactivePrincipalGrantsNothing(t *testing.T) {
	// The repository resolves an inactive principal to zero grants
	// with the superuser flag forced off.
	dormant := uuid.New()
	repo := &stubGrantsRepo{grants: map[uuid.UUID]Grants{
		dormant: {PrincipalActive: false},
	}}
	svc := NewService(repo, nil, nil, "")

	set, err := svc.EffectivePermissions(context.Background(), dormant)
	require.NoError(t, err)
	require.True(t, set.Empty())

	ok, err := svc.IsAdmin(context.Background(), dormant)
	require.NoError(t, err)
	require.False(t, ok)
}
