package delegation

import (
	"context"
	"testing"

	"assesshub/internal/audit"
	"assesshub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

type mockGrantRepo struct {
	mock.Mock
}

func (m *mockGrantRepo) Create(ctx context.Context, g *domain.DelegationGrant) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *mockGrantRepo) GetByID(ctx context.Context, id string) (*domain.DelegationGrant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DelegationGrant), args.Error(1)
}

func (m *mockGrantRepo) Revoke(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockGrantRepo) ActiveGrantsFor(ctx context.Context, assessmentID, granteeID string) ([]domain.DelegationGrant, error) {
	args := m.Called(ctx, assessmentID, granteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DelegationGrant), args.Error(1)
}

func (m *mockGrantRepo) ListForAssessment(ctx context.Context, assessmentID string) ([]domain.DelegationGrant, error) {
	args := m.Called(ctx, assessmentID)
	return args.Get(0).([]domain.DelegationGrant), args.Error(1)
}

func (m *mockGrantRepo) ListForIdentity(ctx context.Context, identityID string) ([]domain.DelegationGrant, error) {
	args := m.Called(ctx, identityID)
	return args.Get(0).([]domain.DelegationGrant), args.Error(1)
}

type mockAssessmentReader struct {
	mock.Mock
}

func (m *mockAssessmentReader) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assessment), args.Error(1)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

func newTestService(grants *mockGrantRepo, assessments *mockAssessmentReader) *Service {
	return NewService(grants, assessments, nopNotifier{}, audit.NopRecorder{}, domain.NewPermissionTable())
}

func TestService_Grant_Success(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	tenant := "tenant-1"
	assessments.On("GetByID", mock.Anything, "assess-1").Return(&domain.Assessment{
		ID: "assess-1", TenantID: tenant, CreatedBy: "admin-1",
	}, nil)
	grants.On("Create", mock.Anything, mock.Anything).Return(nil)

	grant, err := svc.Grant(context.Background(), GrantParams{
		AssessmentID:  "assess-1",
		GranteeID:     "assessor-1",
		GrantorID:     "admin-1",
		GrantorRole:   domain.RoleClientAdmin,
		GrantorTenant: &tenant,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.DelegationActive, grant.Status)
	assert.Nil(t, grant.DomainID)
	grants.AssertExpectations(t)
}

func TestService_Grant_RoleGate(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	for _, role := range []domain.Role{domain.RoleAnalyst, domain.RoleAssessor} {
		_, err := svc.Grant(context.Background(), GrantParams{
			AssessmentID: "assess-1",
			GranteeID:    "assessor-1",
			GrantorRole:  role,
		})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	}
	assessments.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_Grant_CrossTenantRejected(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	mine := "tenant-1"
	assessments.On("GetByID", mock.Anything, "assess-other").Return(&domain.Assessment{
		ID: "assess-other", TenantID: "tenant-2",
	}, nil)

	_, err := svc.Grant(context.Background(), GrantParams{
		AssessmentID:  "assess-other",
		GranteeID:     "assessor-1",
		GrantorRole:   domain.RoleClientAdmin,
		GrantorTenant: &mine,
	})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	grants.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Grant_AssessmentMissing(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	assessments.On("GetByID", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Grant(context.Background(), GrantParams{
		AssessmentID: "ghost",
		GranteeID:    "assessor-1",
		GrantorRole:  domain.RoleSuperAdmin,
	})
	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestService_Revoke_Monotonic(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	grants.On("GetByID", mock.Anything, "grant-1").Return(&domain.DelegationGrant{ID: "grant-1"}, nil)
	grants.On("Revoke", mock.Anything, "grant-1").Return(true, nil).Once()

	assert.NoError(t, svc.Revoke(context.Background(), "grant-1", "admin-1", "10.0.0.1"))

	// Second revoke loses the compare-and-set.
	grants.On("Revoke", mock.Anything, "grant-1").Return(false, nil).Once()
	assert.ErrorIs(t, svc.Revoke(context.Background(), "grant-1", "admin-1", "10.0.0.1"), ErrAlreadyRevoked)

	grants.On("GetByID", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, svc.Revoke(context.Background(), "ghost", "admin-1", "10.0.0.1"), ErrGrantNotFound)
}

func TestService_CheckAccess_SeniorRolesBypass(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	for _, role := range []domain.Role{domain.RoleSuperAdmin, domain.RoleAnalyst} {
		ok, err := svc.CheckAccess(context.Background(), &domain.Identity{ID: "x", Role: role}, "assess-1", nil)
		assert.NoError(t, err)
		assert.True(t, ok)
	}
	assessments.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_CheckAccess_CreatorAlwaysAllowed(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	assessments.On("GetByID", mock.Anything, "assess-1").Return(&domain.Assessment{
		ID: "assess-1", CreatedBy: "admin-1",
	}, nil)

	ok, err := svc.CheckAccess(context.Background(), &domain.Identity{
		ID: "admin-1", Role: domain.RoleClientAdmin,
	}, "assess-1", nil)

	assert.NoError(t, err)
	assert.True(t, ok)
	grants.AssertNotCalled(t, "ActiveGrantsFor", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CheckAccess_DomainScopedGrant(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	assessments.On("GetByID", mock.Anything, "assess-1").Return(&domain.Assessment{
		ID: "assess-1", CreatedBy: "someone-else",
	}, nil)

	domainA := "domain-a"
	grants.On("ActiveGrantsFor", mock.Anything, "assess-1", "assessor-1").Return([]domain.DelegationGrant{
		{ID: "grant-1", AssessmentID: "assess-1", DomainID: &domainA, Status: domain.DelegationActive},
	}, nil)

	assessor := &domain.Identity{ID: "assessor-1", Role: domain.RoleAssessor}

	ok, err := svc.CheckAccess(context.Background(), assessor, "assess-1", &domainA)
	assert.NoError(t, err)
	assert.True(t, ok)

	domainB := "domain-b"
	ok, err = svc.CheckAccess(context.Background(), assessor, "assess-1", &domainB)
	assert.NoError(t, err)
	assert.False(t, ok)

	// A domain-scoped grant does not cover the whole assessment.
	ok, err = svc.CheckAccess(context.Background(), assessor, "assess-1", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestService_CheckAccess_WholeAssessmentGrant(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	assessments.On("GetByID", mock.Anything, "assess-1").Return(&domain.Assessment{
		ID: "assess-1", CreatedBy: "someone-else",
	}, nil)
	grants.On("ActiveGrantsFor", mock.Anything, "assess-1", "assessor-1").Return([]domain.DelegationGrant{
		{ID: "grant-1", AssessmentID: "assess-1", DomainID: nil, Status: domain.DelegationActive},
	}, nil)

	assessor := &domain.Identity{ID: "assessor-1", Role: domain.RoleAssessor}
	anyDomain := "domain-z"

	ok, err := svc.CheckAccess(context.Background(), assessor, "assess-1", &anyDomain)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckAccess(context.Background(), assessor, "assess-1", nil)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestService_CheckAccess_NoGrants(t *testing.T) {
	grants := new(mockGrantRepo)
	assessments := new(mockAssessmentReader)
	svc := newTestService(grants, assessments)

	assessments.On("GetByID", mock.Anything, "assess-1").Return(&domain.Assessment{
		ID: "assess-1", CreatedBy: "someone-else",
	}, nil)
	grants.On("ActiveGrantsFor", mock.Anything, "assess-1", "assessor-1").Return([]domain.DelegationGrant{}, nil)

	ok, err := svc.CheckAccess(context.Background(), &domain.Identity{
		ID: "assessor-1", Role: domain.RoleAssessor,
	}, "assess-1", nil)

	assert.NoError(t, err)
	assert.False(t, ok)
}
