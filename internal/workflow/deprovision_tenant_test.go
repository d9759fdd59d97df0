package workflow

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

type DeprovisionTenantWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *DeprovisionTenantWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *DeprovisionTenantWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func provisionedTestTenant(id, instanceID, remoteID string) model.Tenant {
	tenant := testTenant(id)
	tenant.InstanceID = &instanceID
	tenant.RemoteUserID = &remoteID
	tenant.ProvisionStatus = model.TenantActive
	return tenant
}

func (s *DeprovisionTenantWorkflowTestSuite) TestSuccess() {
	tenantID := "tenant-1"
	instance := testInstance("inst-1")
	tenant := provisionedTestTenant(tenantID, instance.ID, "alice_abc123")

	s.env.OnActivity("GetTenantByID", mock.Anything, tenantID).Return(&tenant, nil)
	s.env.OnActivity("GetInstanceByID", mock.Anything, instance.ID).Return(&instance, nil)
	s.env.OnActivity("DeleteRemoteUser", mock.Anything, activity.RemoteUserParams{
		Instance: instance, UserID: "alice_abc123",
	}).Return(nil)
	s.env.OnActivity("DeleteRemoteGroup", mock.Anything, activity.RemoteGroupParams{
		Instance: instance, GroupID: tenant.Email,
	}).Return(nil)
	s.env.OnActivity("ReleaseInstance", mock.Anything, instance.ID).Return(nil)
	s.env.OnActivity("ClearTenantLink", mock.Anything, tenantID).Return(nil)

	s.env.ExecuteWorkflow(DeprovisionTenantWorkflow, tenantID)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *DeprovisionTenantWorkflowTestSuite) TestRemoteCleanupFails_StillUnlinks() {
	// The remote account is already gone; the seat and the link must still
	// be released.
	tenantID := "tenant-2"
	instance := testInstance("inst-1")
	tenant := provisionedTestTenant(tenantID, instance.ID, "alice_abc123")

	remoteErr := temporal.NewNonRetryableApplicationError("user does not exist", "FatalTransportError", nil)

	s.env.OnActivity("GetTenantByID", mock.Anything, tenantID).Return(&tenant, nil)
	s.env.OnActivity("GetInstanceByID", mock.Anything, instance.ID).Return(&instance, nil)
	s.env.OnActivity("DeleteRemoteUser", mock.Anything, mock.Anything).Return(remoteErr)
	s.env.OnActivity("DeleteRemoteGroup", mock.Anything, mock.Anything).Return(remoteErr)
	s.env.OnActivity("ReleaseInstance", mock.Anything, instance.ID).Return(nil)
	s.env.OnActivity("ClearTenantLink", mock.Anything, tenantID).Return(nil)

	s.env.ExecuteWorkflow(DeprovisionTenantWorkflow, tenantID)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *DeprovisionTenantWorkflowTestSuite) TestUnprovisionedTenant_NoOp() {
	tenantID := "tenant-3"
	tenant := testTenant(tenantID)

	s.env.OnActivity("GetTenantByID", mock.Anything, tenantID).Return(&tenant, nil)

	s.env.ExecuteWorkflow(DeprovisionTenantWorkflow, tenantID)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestDeprovisionTenantWorkflow(t *testing.T) {
	suite.Run(t, new(DeprovisionTenantWorkflowTestSuite))
}
