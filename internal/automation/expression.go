package automation

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/shalak/assetgridapp/internal/model"
)

// CandidateFilter narrows a run-now candidate set with a caller-supplied
// boolean expr-lang expression, evaluated per transaction against an
// environment exposing the queryable fields. It is a request-scoped caller
// tool, not part of the rule model.
type CandidateFilter struct {
	source  string
	program *vm.Program
}

// CompileCandidateFilter compiles the expression once for the request.
// Compile errors are validation failures reported to the caller.
func CompileCandidateFilter(expression string) (*CandidateFilter, error) {
	program, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, ValidationError([]ErrorDetail{{
			Field:   "filter",
			Rule:    "expression",
			Message: fmt.Sprintf("Compile filter expression: %v", err),
		}})
	}
	return &CandidateFilter{source: expression, program: program}, nil
}

// Match evaluates the filter against one transaction.
func (f *CandidateFilter) Match(tx *model.Transaction) (bool, error) {
	result, err := expr.Run(f.program, filterEnv(tx))
	if err != nil {
		return false, ValidationError([]ErrorDetail{{
			Field:   "filter",
			Rule:    "expression",
			Message: fmt.Sprintf("Evaluate filter expression: %v", err),
		}})
	}
	matched, ok := result.(bool)
	if !ok {
		return false, ValidationError([]ErrorDetail{{
			Field:   "filter",
			Rule:    "expression",
			Message: "Filter expression did not return a boolean",
		}})
	}
	return matched, nil
}

func filterEnv(tx *model.Transaction) map[string]any {
	return map[string]any{
		"transaction": map[string]any{
			"id":          tx.ID.String(),
			"dateTime":    tx.DateTime,
			"description": tx.Description,
			"total":       tx.Total,
			"category":    tx.Category,
			"isSplit":     tx.IsSplit,
		},
	}
}
