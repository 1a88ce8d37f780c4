package automation

import (
	"fmt"

	"github.com/shalak/assetgridapp/internal/model"
)

// Authorize verifies that the user's binding on a rule satisfies the
// required permission. The gate enforces the policy table only; it trusts
// the permission value the store resolved and never re-derives it from
// credentials. A missing binding is indistinguishable from PermissionNone.
func Authorize(user *model.UserContext, binding *Binding, required Permission) error {
	if user == nil {
		return UnauthorizedError("Authentication required")
	}
	if binding == nil || !binding.Permission.Allows(required) {
		return PermissionDeniedError(fmt.Sprintf("%s permission required for this automation", required))
	}
	return nil
}
