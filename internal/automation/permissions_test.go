package automation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

func TestAuthorize(t *testing.T) {
	user := &model.UserContext{ID: uuid.New(), Email: "user@example.com"}
	ruleID := uuid.New()

	binding := func(p Permission) *Binding {
		return &Binding{UserID: user.ID, RuleID: ruleID, Permission: p, Enabled: true}
	}

	// no authenticated user
	err := Authorize(nil, binding(PermissionModify), PermissionRead)
	if CodeOf(err) != CodeUnauthorized {
		t.Fatalf("expected %s, got %v", CodeUnauthorized, err)
	}

	// no binding at all
	err = Authorize(user, nil, PermissionRead)
	if CodeOf(err) != CodePermissionDenied {
		t.Fatalf("expected %s, got %v", CodePermissionDenied, err)
	}

	// insufficient permission
	err = Authorize(user, binding(PermissionRead), PermissionModify)
	if CodeOf(err) != CodePermissionDenied {
		t.Fatalf("expected %s, got %v", CodePermissionDenied, err)
	}
	err = Authorize(user, binding(PermissionNone), PermissionRead)
	if CodeOf(err) != CodePermissionDenied {
		t.Fatalf("expected %s, got %v", CodePermissionDenied, err)
	}

	// sufficient permission, exact and higher
	if err := Authorize(user, binding(PermissionRead), PermissionRead); err != nil {
		t.Fatalf("read binding must satisfy read: %v", err)
	}
	if err := Authorize(user, binding(PermissionModify), PermissionRead); err != nil {
		t.Fatalf("modify binding must satisfy read: %v", err)
	}
	if err := Authorize(user, binding(PermissionModify), PermissionModify); err != nil {
		t.Fatalf("modify binding must satisfy modify: %v", err)
	}
}
