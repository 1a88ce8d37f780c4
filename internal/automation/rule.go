package automation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RuleSchemaVersion is the schema version written into every persisted rule
// record. Decoding treats an absent version as this value.
const RuleSchemaVersion = 1

const (
	maxRuleNameLength        = 50
	maxRuleDescriptionLength = 250
)

// Permission is a per-user grant on a rule. The gate never derives it; the
// identity/permission collaborator resolves (user, rule) to one of these.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionModify
)

// Allows reports whether the permission satisfies the requirement.
func (p Permission) Allows(required Permission) bool {
	return p >= required
}

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionModify:
		return "modify"
	default:
		return "none"
	}
}

func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*p = PermissionNone
	case "read":
		*p = PermissionRead
	case "modify":
		*p = PermissionModify
	default:
		return fmt.Errorf("unknown permission: %q", s)
	}
	return nil
}

// TriggerFlags marks when a rule fires reactively. Both flags may be unset;
// such a rule only ever runs on demand.
type TriggerFlags struct {
	Create bool `json:"create"`
	Modify bool `json:"modify"`
}

// AutomationRule is the persisted combination of triggers, a query, and an
// ordered action list. Edits replace the whole record; query and actions
// never change independently.
type AutomationRule struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     int               `json:"version"`
	Triggers    TriggerFlags      `json:"triggers"`
	Query       QueryExpression   `json:"query"`
	Actions     []json.RawMessage `json:"actions"`
}

// ruleWire mirrors AutomationRule for decoding; Query needs the polymorphic
// query decoder.
type ruleWire struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     *int              `json:"version"`
	Triggers    TriggerFlags      `json:"triggers"`
	Query       json.RawMessage   `json:"query"`
	Actions     []json.RawMessage `json:"actions"`
}

func (r *AutomationRule) UnmarshalJSON(data []byte) error {
	var wire ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode automation rule: %w", err)
	}

	r.ID = wire.ID
	r.Name = wire.Name
	r.Description = wire.Description
	r.Triggers = wire.Triggers
	r.Actions = wire.Actions

	// Older records predate the version column; treat absence as current.
	r.Version = RuleSchemaVersion
	if wire.Version != nil {
		r.Version = *wire.Version
	}

	if len(wire.Query) > 0 {
		query, err := UnmarshalQueryExpression(wire.Query)
		if err != nil {
			return err
		}
		r.Query = query
	}
	return nil
}

// Binding grants one user a permission on one rule, with a per-user enabled
// flag for trigger eligibility. A rule with no bindings is orphaned but kept;
// deleting the rule cascades its bindings.
type Binding struct {
	UserID     uuid.UUID  `json:"userId"`
	RuleID     uuid.UUID  `json:"ruleId"`
	Permission Permission `json:"permission"`
	Enabled    bool       `json:"enabled"`
}

// RuleSummary is the listing shape: rule metadata plus the requesting user's
// own binding state.
type RuleSummary struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	Permission  Permission `json:"permissions"`
}

// RunMode says what invoked a rule run.
type RunMode string

const (
	RunModeNow    RunMode = "run-now"
	RunModeCreate RunMode = "create"
	RunModeModify RunMode = "modify"
)

// RunRecord is one row of the per-rule run audit log. Trigger-based failures
// are only observable here and in the process log; they never unwind the
// triggering write.
type RunRecord struct {
	RuleID  uuid.UUID `json:"ruleId"`
	Mode    RunMode   `json:"mode"`
	Matched int       `json:"matched"`
	Applied int       `json:"applied"`
	Status  string    `json:"status"` // completed or failed
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// ValidateRule checks a rule before it is saved: metadata bounds, a valid
// query tree, and at least one action that the registry can decode. Action
// decode failures (unknown type, unsupported version) propagate as-is so the
// editor sees the real cause.
func ValidateRule(reg *Registry, rule *AutomationRule) error {
	var details []ErrorDetail

	if rule.Name == "" {
		details = append(details, ErrorDetail{Field: "name", Rule: "required", Message: "Name is required"})
	}
	if len(rule.Name) > maxRuleNameLength {
		details = append(details, ErrorDetail{
			Field: "name", Rule: "max_length",
			Message: fmt.Sprintf("Name must be at most %d characters", maxRuleNameLength),
		})
	}
	if len(rule.Description) > maxRuleDescriptionLength {
		details = append(details, ErrorDetail{
			Field: "description", Rule: "max_length",
			Message: fmt.Sprintf("Description must be at most %d characters", maxRuleDescriptionLength),
		})
	}
	if rule.Version != RuleSchemaVersion {
		details = append(details, ErrorDetail{
			Field: "version", Rule: "version",
			Message: fmt.Sprintf("Unsupported rule schema version %d", rule.Version),
		})
	}
	if len(rule.Actions) == 0 {
		details = append(details, ErrorDetail{Field: "actions", Rule: "required", Message: "At least one action is required"})
	}

	details = validateNode(rule.Query, details)
	if len(details) > 0 {
		return ValidationError(details)
	}

	for _, raw := range rule.Actions {
		if _, err := reg.Decode(raw); err != nil {
			return err
		}
	}
	return nil
}
