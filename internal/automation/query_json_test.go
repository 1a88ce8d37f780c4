package automation

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalQueryExpression_NestedTree(t *testing.T) {
	data := []byte(`{
		"operator": "and",
		"children": [
			{"field": "description", "operator": "contains", "value": "coffee"},
			{
				"operator": "not",
				"children": [
					{"field": "total", "operator": "greater-than", "value": 10000}
				]
			}
		]
	}`)

	expr, err := UnmarshalQueryExpression(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	group, ok := expr.(*Group)
	if !ok {
		t.Fatalf("expected *Group, got %T", expr)
	}
	if group.Operator != GroupAnd {
		t.Fatalf("expected and, got %s", group.Operator)
	}
	if len(group.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(group.Children))
	}

	clause, ok := group.Children[0].(*Clause)
	if !ok {
		t.Fatalf("expected *Clause, got %T", group.Children[0])
	}
	if clause.Field != "description" || clause.Operator != OpContains {
		t.Fatalf("unexpected clause: %+v", clause)
	}

	not, ok := group.Children[1].(*Group)
	if !ok {
		t.Fatalf("expected nested *Group, got %T", group.Children[1])
	}
	if not.Operator != GroupNot || len(not.Children) != 1 {
		t.Fatalf("unexpected nested group: %+v", not)
	}
}

func TestUnmarshalQueryExpression_EmptyChildrenIsGroup(t *testing.T) {
	expr, err := UnmarshalQueryExpression([]byte(`{"operator": "and", "children": []}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	group, ok := expr.(*Group)
	if !ok {
		t.Fatalf("expected *Group, got %T", expr)
	}
	if len(group.Children) != 0 {
		t.Fatalf("expected no children, got %d", len(group.Children))
	}
}

func TestQueryExpression_RoundTrip(t *testing.T) {
	original := &Group{Operator: GroupOr, Children: []QueryExpression{
		&Clause{Field: "category", Operator: OpIsNull},
		&Clause{Field: "total", Operator: OpLessThan, Value: float64(500)},
	}}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalQueryExpression(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Equivalence check through behavior: compile both and compare results.
	p1 := mustCompile(t, original)
	p2 := mustCompile(t, decoded)
	for _, tx := range []struct {
		category string
		total    int64
	}{
		{"", 1000},
		{"food", 100},
		{"food", 1000},
	} {
		candidate := testTx("x", tx.total)
		candidate.Category = tx.category
		if p1(candidate) != p2(candidate) {
			t.Fatalf("round-tripped query diverges for %+v", tx)
		}
	}
}
