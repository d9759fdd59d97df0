package workflow

import (
	"strings"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized
// correctly by the Temporal test framework. In unit tests all activities are
// mocked via OnActivity, but the framework still needs the type information
// for serialization of parameters and return values.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Store{})
	env.RegisterActivity(&activity.Remote{})
	env.RegisterActivity(&activity.Monitor{})
}

// matchTenantFailed matches an UpdateTenantStatus call that marks the tenant
// failed with a non-nil message containing the given substring. The exact
// message includes Temporal error wrapping that is not predictable in tests.
func matchTenantFailed(tenantID, contains string) interface{} {
	return mock.MatchedBy(func(params activity.UpdateTenantStatusParams) bool {
		if params.ID != tenantID || params.Status != model.TenantFailed || params.StatusMessage == nil {
			return false
		}
		return contains == "" || strings.Contains(*params.StatusMessage, contains)
	})
}
