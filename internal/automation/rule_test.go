package automation

import (
	"encoding/json"
	"strings"
	"testing"
)

func validRule() *AutomationRule {
	return &AutomationRule{
		Name:     "Tag coffee",
		Version:  RuleSchemaVersion,
		Triggers: TriggerFlags{Create: true},
		Query:    &Clause{Field: "description", Operator: OpContains, Value: "coffee"},
		Actions: []json.RawMessage{
			json.RawMessage(`{"key": "set-description", "version": 1, "value": "Coffee"}`),
		},
	}
}

func TestValidateRule_Valid(t *testing.T) {
	if err := ValidateRule(NewRegistry(), validRule()); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
}

func TestValidateRule_Metadata(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		mutate func(*AutomationRule)
	}{
		{"missing name", func(r *AutomationRule) { r.Name = "" }},
		{"name too long", func(r *AutomationRule) { r.Name = strings.Repeat("x", 51) }},
		{"description too long", func(r *AutomationRule) { r.Description = strings.Repeat("x", 251) }},
		{"wrong schema version", func(r *AutomationRule) { r.Version = 2 }},
		{"no actions", func(r *AutomationRule) { r.Actions = nil }},
		{"missing query", func(r *AutomationRule) { r.Query = nil }},
	}

	for _, tc := range cases {
		rule := validRule()
		tc.mutate(rule)
		err := ValidateRule(reg, rule)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if CodeOf(err) != CodeValidationFailed {
			t.Fatalf("%s: expected %s, got %s", tc.name, CodeValidationFailed, CodeOf(err))
		}
	}

	// boundary lengths pass
	rule := validRule()
	rule.Name = strings.Repeat("x", 50)
	rule.Description = strings.Repeat("x", 250)
	if err := ValidateRule(reg, rule); err != nil {
		t.Fatalf("boundary lengths must pass: %v", err)
	}
}

func TestValidateRule_ActionDecodeErrorsPropagate(t *testing.T) {
	reg := NewRegistry()

	rule := validRule()
	rule.Actions = []json.RawMessage{json.RawMessage(`{"key": "set-category", "value": "food"}`)}
	err := ValidateRule(reg, rule)
	if CodeOf(err) != CodeUnknownActionType {
		t.Fatalf("expected %s, got %v", CodeUnknownActionType, err)
	}
}

func TestAutomationRule_UnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"name": "Tag rent",
		"description": "Normalize rent payments",
		"triggers": {"create": true, "modify": false},
		"query": {"field": "total", "operator": "equals", "value": 120000},
		"actions": [{"key": "set-description", "version": 1, "value": "Rent"}]
	}`)

	var rule AutomationRule
	if err := json.Unmarshal(data, &rule); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rule.Version != RuleSchemaVersion {
		t.Fatalf("absent version must default to %d, got %d", RuleSchemaVersion, rule.Version)
	}
	if !rule.Triggers.Create || rule.Triggers.Modify {
		t.Fatalf("unexpected triggers: %+v", rule.Triggers)
	}
	clause, ok := rule.Query.(*Clause)
	if !ok {
		t.Fatalf("expected *Clause query, got %T", rule.Query)
	}
	if clause.Field != "total" {
		t.Fatalf("unexpected clause: %+v", clause)
	}
	if len(rule.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(rule.Actions))
	}
}

func TestPermission_JSON(t *testing.T) {
	data, err := json.Marshal(PermissionModify)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"modify"` {
		t.Fatalf("expected \"modify\", got %s", data)
	}

	var p Permission
	if err := json.Unmarshal([]byte(`"read"`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != PermissionRead {
		t.Fatalf("expected read, got %v", p)
	}

	if err := json.Unmarshal([]byte(`"owner"`), &p); err == nil {
		t.Fatal("expected error for unknown permission")
	}
}
