package admin

import (
	"context"
	"testing"

	"assesshub/internal/audit"
	"assesshub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockIdentityRepo struct {
	mock.Mock
}

func (m *mockIdentityRepo) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *mockIdentityRepo) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockIdentityRepo) SetRole(ctx context.Context, id string, role domain.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *mockIdentityRepo) List(ctx context.Context, tenantID *string, page, pageSize int) ([]domain.Identity, int64, error) {
	args := m.Called(ctx, tenantID, page, pageSize)
	return args.Get(0).([]domain.Identity), args.Get(1).(int64), args.Error(2)
}

type mockRefreshRevoker struct {
	mock.Mock
}

func (m *mockRefreshRevoker) RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	args := m.Called(ctx, identityID)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(identities *mockIdentityRepo, refresh *mockRefreshRevoker) *Service {
	return NewService(identities, nil, refresh, domain.NewPermissionTable(), audit.NopRecorder{})
}

func tenantAdmin(tenant string) Principal {
	return Principal{ID: "admin-1", Role: domain.RoleClientAdmin, TenantID: &tenant}
}

func TestService_SetRole_SameRankAllowed(t *testing.T) {
	identities := new(mockIdentityRepo)
	refresh := new(mockRefreshRevoker)
	svc := newTestService(identities, refresh)

	tenant := "tenant-1"
	identities.On("GetByID", mock.Anything, "assessor-1").Return(&domain.Identity{
		ID: "assessor-1", Role: domain.RoleAssessor, TenantID: &tenant,
	}, nil)

	// A client admin may promote a junior up to their own rank, mirroring
	// the invite matrix.
	identities.On("SetRole", mock.Anything, "assessor-1", domain.RoleClientAdmin).Return(nil)
	assert.NoError(t, svc.SetRole(context.Background(), tenantAdmin(tenant), "assessor-1", domain.RoleClientAdmin, "10.0.0.1"))

	// Never past it.
	err := svc.SetRole(context.Background(), tenantAdmin(tenant), "assessor-1", domain.RoleAnalyst, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotManageable)
	identities.AssertNotCalled(t, "SetRole", mock.Anything, "assessor-1", domain.RoleAnalyst)
}

func TestService_SetRole_PeerNotManageable(t *testing.T) {
	identities := new(mockIdentityRepo)
	refresh := new(mockRefreshRevoker)
	svc := newTestService(identities, refresh)

	tenant := "tenant-1"
	identities.On("GetByID", mock.Anything, "peer-1").Return(&domain.Identity{
		ID: "peer-1", Role: domain.RoleClientAdmin, TenantID: &tenant,
	}, nil)

	err := svc.SetRole(context.Background(), tenantAdmin(tenant), "peer-1", domain.RoleAssessor, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotManageable)
}

func TestService_SetRole_CrossTenantRejected(t *testing.T) {
	identities := new(mockIdentityRepo)
	refresh := new(mockRefreshRevoker)
	svc := newTestService(identities, refresh)

	other := "tenant-2"
	identities.On("GetByID", mock.Anything, "assessor-1").Return(&domain.Identity{
		ID: "assessor-1", Role: domain.RoleAssessor, TenantID: &other,
	}, nil)

	err := svc.SetRole(context.Background(), tenantAdmin("tenant-1"), "assessor-1", domain.RoleAssessor, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotManageable)
}

func TestService_SetRole_InvalidRole(t *testing.T) {
	identities := new(mockIdentityRepo)
	refresh := new(mockRefreshRevoker)
	svc := newTestService(identities, refresh)

	err := svc.SetRole(context.Background(), tenantAdmin("tenant-1"), "assessor-1", domain.Role("ghost"), "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidRole)
	identities.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_SetActive_DeactivationRevokesCredentials(t *testing.T) {
	identities := new(mockIdentityRepo)
	refresh := new(mockRefreshRevoker)
	svc := newTestService(identities, refresh)

	tenant := "tenant-1"
	identities.On("GetByID", mock.Anything, "assessor-1").Return(&domain.Identity{
		ID: "assessor-1", Email: "assessor@acme.example", Role: domain.RoleAssessor, TenantID: &tenant,
	}, nil)
	identities.On("SetActive", mock.Anything, "assessor-1", false).Return(nil)
	refresh.On("RevokeAllForIdentity", mock.Anything, "assessor-1").Return(int64(1), nil)

	assert.NoError(t, svc.SetActive(context.Background(), tenantAdmin(tenant), "assessor-1", false, "10.0.0.1"))
	refresh.AssertExpectations(t)
}
