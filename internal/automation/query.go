package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

// Predicate is a compiled query filter. It is pure: evaluating it never
// mutates the transaction or any shared state, and repeated calls against an
// unchanged transaction return the same result.
type Predicate func(*model.Transaction) bool

// GroupOperator combines child expressions.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
	GroupNot GroupOperator = "not"
)

// QueryExpression is either a *Group or a *Clause. The tree is finite and
// acyclic; nothing else implements the interface.
type QueryExpression interface {
	queryNode()
}

// Group is a boolean combinator over an ordered list of child expressions.
// Not takes exactly one child.
type Group struct {
	Operator GroupOperator     `json:"operator"`
	Children []QueryExpression `json:"children"`
}

// Clause compares a single transaction field against a typed operand.
// Value holds the JSON-decoded operand; Validate checks it against the
// field's type before a rule is ever saved.
type Clause struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

func (*Group) queryNode()  {}
func (*Clause) queryNode() {}

// Validate walks the expression tree and rejects unknown fields, operators
// invalid for the field's type, and operands that cannot be coerced to the
// field's type. A nil expression is invalid: rules always carry a query.
func Validate(expr QueryExpression) error {
	details := validateNode(expr, nil)
	if len(details) > 0 {
		return ValidationError(details)
	}
	return nil
}

func validateNode(expr QueryExpression, details []ErrorDetail) []ErrorDetail {
	switch node := expr.(type) {
	case nil:
		return append(details, ErrorDetail{Rule: "query", Message: "Query expression is missing"})
	case *Group:
		switch node.Operator {
		case GroupAnd, GroupOr:
		case GroupNot:
			if len(node.Children) != 1 {
				details = append(details, ErrorDetail{
					Rule:    "query",
					Message: fmt.Sprintf("Not group must have exactly one child, has %d", len(node.Children)),
				})
			}
		default:
			details = append(details, ErrorDetail{
				Rule:    "query",
				Message: fmt.Sprintf("Unknown group operator: %s", node.Operator),
			})
		}
		for _, child := range node.Children {
			details = validateNode(child, details)
		}
		return details
	case *Clause:
		spec, ok := LookupField(node.Field)
		if !ok {
			return append(details, ErrorDetail{
				Field:   node.Field,
				Rule:    "query",
				Message: fmt.Sprintf("Unknown field: %s", node.Field),
			})
		}
		if !FieldSupportsOperator(spec, node.Operator) {
			return append(details, ErrorDetail{
				Field:   node.Field,
				Rule:    "query",
				Message: fmt.Sprintf("Operator %s is not valid for field %s (%s)", node.Operator, node.Field, spec.Type),
			})
		}
		if _, err := coerceOperand(spec, node.Operator, node.Value); err != nil {
			return append(details, ErrorDetail{
				Field:   node.Field,
				Rule:    "query",
				Message: err.Error(),
			})
		}
		return details
	default:
		return append(details, ErrorDetail{Rule: "query", Message: "Unknown query node type"})
	}
}

// Compile turns a validated expression tree into a reusable Predicate.
// And over no children is true; Or over no children is false.
func Compile(expr QueryExpression) (Predicate, error) {
	switch node := expr.(type) {
	case *Group:
		children := make([]Predicate, len(node.Children))
		for i, child := range node.Children {
			p, err := Compile(child)
			if err != nil {
				return nil, err
			}
			children[i] = p
		}
		switch node.Operator {
		case GroupAnd:
			return func(tx *model.Transaction) bool {
				for _, p := range children {
					if !p(tx) {
						return false
					}
				}
				return true
			}, nil
		case GroupOr:
			return func(tx *model.Transaction) bool {
				for _, p := range children {
					if p(tx) {
						return true
					}
				}
				return false
			}, nil
		case GroupNot:
			if len(children) != 1 {
				return nil, fmt.Errorf("not group must have exactly one child, has %d", len(children))
			}
			child := children[0]
			return func(tx *model.Transaction) bool {
				return !child(tx)
			}, nil
		default:
			return nil, fmt.Errorf("unknown group operator: %s", node.Operator)
		}
	case *Clause:
		return compileClause(node)
	default:
		return nil, fmt.Errorf("unknown query node type %T", expr)
	}
}

func compileClause(clause *Clause) (Predicate, error) {
	spec, ok := LookupField(clause.Field)
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", clause.Field)
	}
	if !FieldSupportsOperator(spec, clause.Operator) {
		return nil, fmt.Errorf("operator %s is not valid for field %s", clause.Operator, clause.Field)
	}
	operand, err := coerceOperand(spec, clause.Operator, clause.Value)
	if err != nil {
		return nil, err
	}

	if clause.Operator == OpIsNull {
		field := clause.Field
		return func(tx *model.Transaction) bool {
			_, isNull := fieldValue(tx, field)
			return isNull
		}, nil
	}

	// The account field matches either side of the transaction, so it gets
	// its own evaluation path instead of the scalar comparison below.
	if spec.Name == "account" {
		return compileAccountClause(clause.Operator, operand)
	}

	field := clause.Field
	op := clause.Operator
	return func(tx *model.Transaction) bool {
		val, isNull := fieldValue(tx, field)
		if isNull {
			return false
		}
		return compareValues(op, val, operand)
	}, nil
}

func compileAccountClause(op Operator, operand any) (Predicate, error) {
	switch op {
	case OpEquals:
		id := operand.(uuid.UUID)
		return func(tx *model.Transaction) bool {
			return tx.BelongsToAccount(id)
		}, nil
	case OpNotEquals:
		id := operand.(uuid.UUID)
		return func(tx *model.Transaction) bool {
			return !tx.BelongsToAccount(id)
		}, nil
	case OpIn:
		ids := operand.([]any)
		return func(tx *model.Transaction) bool {
			for _, item := range ids {
				if tx.BelongsToAccount(item.(uuid.UUID)) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("operator %s is not valid for field account", op)
	}
}

// fieldValue extracts a queryable field from a transaction. The second
// return is true when the field is null for this transaction.
func fieldValue(tx *model.Transaction, field string) (any, bool) {
	switch field {
	case "id":
		return tx.ID, false
	case "dateTime":
		return tx.DateTime, false
	case "description":
		return tx.Description, false
	case "total":
		return tx.Total, false
	case "category":
		if tx.Category == "" {
			return "", true
		}
		return tx.Category, false
	case "account":
		return nil, tx.SourceAccountID == nil && tx.DestinationAccountID == nil
	case "isSplit":
		return tx.IsSplit, false
	}
	return nil, true
}

// compareValues evaluates op against a field value and a coerced operand of
// the same type. Both sides were type-checked at compile time.
func compareValues(op Operator, val, operand any) bool {
	if op == OpIn {
		for _, item := range operand.([]any) {
			if scalarEquals(val, item) {
				return true
			}
		}
		return false
	}

	switch v := val.(type) {
	case string:
		o := operand.(string)
		switch op {
		case OpEquals:
			return v == o
		case OpNotEquals:
			return v != o
		case OpContains:
			return strings.Contains(strings.ToLower(v), strings.ToLower(o))
		}
	case int64:
		o := operand.(int64)
		switch op {
		case OpEquals:
			return v == o
		case OpNotEquals:
			return v != o
		case OpGreaterThan:
			return v > o
		case OpLessThan:
			return v < o
		}
	case time.Time:
		o := operand.(time.Time)
		switch op {
		case OpEquals:
			return v.Equal(o)
		case OpNotEquals:
			return !v.Equal(o)
		case OpGreaterThan:
			return v.After(o)
		case OpLessThan:
			return v.Before(o)
		}
	case bool:
		o := operand.(bool)
		switch op {
		case OpEquals:
			return v == o
		case OpNotEquals:
			return v != o
		}
	case uuid.UUID:
		o := operand.(uuid.UUID)
		switch op {
		case OpEquals:
			return v == o
		case OpNotEquals:
			return v != o
		}
	}
	return false
}

func scalarEquals(val, operand any) bool {
	switch v := val.(type) {
	case string:
		o, ok := operand.(string)
		return ok && v == o
	case int64:
		o, ok := operand.(int64)
		return ok && v == o
	case uuid.UUID:
		o, ok := operand.(uuid.UUID)
		return ok && v == o
	case time.Time:
		o, ok := operand.(time.Time)
		return ok && v.Equal(o)
	}
	return false
}

// coerceOperand converts a JSON-decoded clause value into the field's native
// type. For In the value must be a non-empty array of scalars; for IsNull no
// operand is allowed.
func coerceOperand(spec FieldSpec, op Operator, value any) (any, error) {
	if op == OpIsNull {
		if value != nil {
			return nil, fmt.Errorf("operator %s takes no operand", op)
		}
		return nil, nil
	}
	if op == OpIn {
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator %s requires an array operand", op)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("operator %s requires a non-empty array operand", op)
		}
		coerced := make([]any, len(list))
		for i, item := range list {
			v, err := coerceScalar(spec, item)
			if err != nil {
				return nil, err
			}
			coerced[i] = v
		}
		return coerced, nil
	}
	return coerceScalar(spec, value)
}

func coerceScalar(spec FieldSpec, value any) (any, error) {
	switch spec.Type {
	case FieldTypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case FieldTypeAmount:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("field %s requires a whole amount in minor units, got %v", spec.Name, v)
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s requires an integer amount, got %q", spec.Name, v)
			}
			return n, nil
		}
	case FieldTypeDate:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("field %s requires an RFC3339 timestamp, got %q", spec.Name, v)
			}
			return t, nil
		}
	case FieldTypeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case FieldTypeReference:
		switch v := value.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("field %s requires a UUID, got %q", spec.Name, v)
			}
			return id, nil
		}
	}
	return nil, fmt.Errorf("field %s (%s) cannot be compared with a %T operand", spec.Name, spec.Type, value)
}
