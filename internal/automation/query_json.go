package automation

import (
	"encoding/json"
	"fmt"
)

// The persisted query form is polymorphic: groups carry an operator plus
// children, clauses carry a field comparison. Marshalling uses the default
// encoding of the concrete types; unmarshalling dispatches on the presence
// of the "children" key.

// UnmarshalQueryExpression decodes one node of a persisted query tree.
func UnmarshalQueryExpression(data []byte) (QueryExpression, error) {
	var probe struct {
		Children *json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode query node: %w", err)
	}

	if probe.Children != nil {
		var group Group
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, err
		}
		return &group, nil
	}

	var clause Clause
	if err := json.Unmarshal(data, &clause); err != nil {
		return nil, fmt.Errorf("decode clause: %w", err)
	}
	return &clause, nil
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		Operator GroupOperator     `json:"operator"`
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode group: %w", err)
	}

	g.Operator = raw.Operator
	g.Children = make([]QueryExpression, 0, len(raw.Children))
	for _, child := range raw.Children {
		expr, err := UnmarshalQueryExpression(child)
		if err != nil {
			return err
		}
		g.Children = append(g.Children, expr)
	}
	return nil
}
