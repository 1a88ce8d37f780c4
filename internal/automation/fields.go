package automation

// FieldType classifies a transaction field for operand typing and operator
// validity. Type mismatches are rejected at rule-save time, never at
// evaluation time.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeAmount    FieldType = "amount"
	FieldTypeDate      FieldType = "date"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeReference FieldType = "reference"
)

// Operator is a clause comparison operator. Each field type supports a
// subset; see operatorsByType.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not-equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater-than"
	OpLessThan    Operator = "less-than"
	OpIn          Operator = "in"
	OpIsNull      Operator = "is-null"
)

// FieldSpec describes one queryable transaction field.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// transactionFields is the closed schema of queryable fields. Clauses naming
// anything else fail validation before a rule is ever saved.
var transactionFields = map[string]FieldSpec{
	"id":          {Name: "id", Type: FieldTypeReference},
	"dateTime":    {Name: "dateTime", Type: FieldTypeDate},
	"description": {Name: "description", Type: FieldTypeString},
	"total":       {Name: "total", Type: FieldTypeAmount},
	"category":    {Name: "category", Type: FieldTypeString, Nullable: true},
	"account":     {Name: "account", Type: FieldTypeReference, Nullable: true},
	"isSplit":     {Name: "isSplit", Type: FieldTypeBoolean},
}

var operatorsByType = map[FieldType][]Operator{
	FieldTypeString:    {OpEquals, OpNotEquals, OpContains, OpIn, OpIsNull},
	FieldTypeAmount:    {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpIn},
	FieldTypeDate:      {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan},
	FieldTypeBoolean:   {OpEquals, OpNotEquals},
	FieldTypeReference: {OpEquals, OpNotEquals, OpIn, OpIsNull},
}

// LookupField returns the spec for a queryable field name.
func LookupField(name string) (FieldSpec, bool) {
	spec, ok := transactionFields[name]
	return spec, ok
}

// FieldSupportsOperator reports whether the operator is valid for the
// field's type. IsNull is additionally restricted to nullable fields.
func FieldSupportsOperator(spec FieldSpec, op Operator) bool {
	if op == OpIsNull && !spec.Nullable {
		return false
	}
	for _, valid := range operatorsByType[spec.Type] {
		if valid == op {
			return true
		}
	}
	return false
}
