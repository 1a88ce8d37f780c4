package model

import "github.com/google/uuid"

// UserContext represents the authenticated user, set by auth middleware.
// The identity provider is external; this carries only what the automation
// layer needs to resolve permission bindings.
type UserContext struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}
