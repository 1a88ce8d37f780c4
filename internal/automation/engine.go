package automation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

// TransactionStore is the transaction persistence collaborator. ApplyChanges
// must commit every given transaction's mutations atomically: all rows or
// none.
type TransactionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, limit int) ([]model.Transaction, error)
	ApplyChanges(ctx context.Context, txs []*model.Transaction) error
}

// RuleStore is the rule persistence surface the engine reads from. A missing
// binding is returned as (nil, nil).
type RuleStore interface {
	GetRule(ctx context.Context, id uuid.UUID) (*AutomationRule, error)
	GetBinding(ctx context.Context, userID, ruleID uuid.UUID) (*Binding, error)
	ListTriggered(ctx context.Context, mode RunMode) ([]AutomationRule, error)
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Engine runs automation rules against candidate transactions. It holds the
// frozen action registry by reference and imposes no locking of its own;
// concurrent runs over overlapping transactions resolve in the store's
// atomic commit (last committed wins).
type Engine struct {
	transactions TransactionStore
	rules        RuleStore
	registry     *Registry
	runNowLimit  int
}

func NewEngine(transactions TransactionStore, rules RuleStore, registry *Registry, runNowLimit int) *Engine {
	return &Engine{
		transactions: transactions,
		rules:        rules,
		registry:     registry,
		runNowLimit:  runNowLimit,
	}
}

// RunNow executes a rule on demand for a user with a Modify binding. The
// candidate set is loaded from the store bounded by the configured cap and
// optionally narrowed by a caller-supplied filter expression. Errors
// propagate to the caller.
func (e *Engine) RunNow(ctx context.Context, user *model.UserContext, ruleID uuid.UUID, filter string) (int, error) {
	rule, err := e.rules.GetRule(ctx, ruleID)
	if err != nil {
		return 0, err
	}

	var binding *Binding
	if user != nil {
		binding, err = e.rules.GetBinding(ctx, user.ID, ruleID)
		if err != nil {
			return 0, err
		}
	}
	if err := Authorize(user, binding, PermissionModify); err != nil {
		return 0, err
	}

	stored, err := e.transactions.List(ctx, e.runNowLimit)
	if err != nil {
		return 0, PersistenceError(err)
	}

	candidates := make([]*model.Transaction, 0, len(stored))
	if filter != "" {
		compiled, err := CompileCandidateFilter(filter)
		if err != nil {
			return 0, err
		}
		for i := range stored {
			matched, err := compiled.Match(&stored[i])
			if err != nil {
				return 0, err
			}
			if matched {
				candidates = append(candidates, &stored[i])
			}
		}
	} else {
		for i := range stored {
			candidates = append(candidates, &stored[i])
		}
	}

	matched, applied, runErr := e.run(ctx, rule, candidates)
	e.record(ctx, rule.ID, RunModeNow, matched, applied, runErr)
	return applied, runErr
}

// OnTransactionCreated runs every rule with the Create trigger flag and at
// least one enabled binding against the just-persisted transaction. It is
// invoked synchronously after the collaborator's own commit; failures are
// logged and recorded against the rule but never propagate, so the
// triggering write always stands.
func (e *Engine) OnTransactionCreated(ctx context.Context, tx *model.Transaction) {
	e.runTriggered(ctx, RunModeCreate, tx)
}

// OnTransactionModified is the Modify-trigger counterpart of
// OnTransactionCreated.
func (e *Engine) OnTransactionModified(ctx context.Context, tx *model.Transaction) {
	e.runTriggered(ctx, RunModeModify, tx)
}

func (e *Engine) runTriggered(ctx context.Context, mode RunMode, tx *model.Transaction) {
	rules, err := e.rules.ListTriggered(ctx, mode)
	if err != nil {
		log.Printf("ERROR: load %s-triggered automations: %v", mode, err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		matched, applied, runErr := e.run(ctx, rule, []*model.Transaction{tx})
		e.record(ctx, rule.ID, mode, matched, applied, runErr)
		if runErr != nil {
			log.Printf("ERROR: automation %q (%s) failed on %s trigger for transaction %s: %v",
				rule.Name, rule.ID, mode, tx.ID, runErr)
		}
	}
}

// run is one rule execution: compile the query once, snapshot the match set,
// apply every action in list order to that same snapshot, then persist all
// mutations in one atomic commit. Actions are decoded up front so an
// unresolvable action aborts before anything is touched. Actions do not
// re-filter between steps: a transaction stays in the match set for the
// whole run even if an earlier action changes a queried field.
func (e *Engine) run(ctx context.Context, rule *AutomationRule, candidates []*model.Transaction) (matched, applied int, err error) {
	actions := make([]Action, 0, len(rule.Actions))
	for _, raw := range rule.Actions {
		action, err := e.registry.Decode(raw)
		if err != nil {
			return 0, 0, err
		}
		actions = append(actions, action)
	}

	predicate, err := Compile(rule.Query)
	if err != nil {
		return 0, 0, fmt.Errorf("compile query for automation %s: %w", rule.ID, err)
	}

	// Actions mutate clones; the caller's transactions stay untouched until
	// the store commit succeeds.
	var matches []*model.Transaction
	for _, candidate := range candidates {
		if predicate(candidate) {
			matches = append(matches, candidate.Clone())
		}
	}
	matched = len(matches)
	if matched == 0 {
		return 0, 0, nil
	}

	for _, action := range actions {
		for _, match := range matches {
			if err := action.Apply(match); err != nil {
				return matched, 0, ActionFailedError(action.Key(), err)
			}
		}
	}

	if err := e.transactions.ApplyChanges(ctx, matches); err != nil {
		if CodeOf(err) != "" {
			return matched, 0, err
		}
		return matched, 0, PersistenceError(err)
	}

	// Reflect committed mutations back onto the caller's candidates so
	// trigger callers observe the post-automation state.
	for _, match := range matches {
		for _, candidate := range candidates {
			if candidate.ID == match.ID {
				*candidate = *match
			}
		}
	}

	return matched, matched, nil
}

func (e *Engine) record(ctx context.Context, ruleID uuid.UUID, mode RunMode, matched, applied int, runErr error) {
	rec := RunRecord{
		RuleID:  ruleID,
		Mode:    mode,
		Matched: matched,
		Applied: applied,
		Status:  "completed",
		At:      time.Now().UTC(),
	}
	if runErr != nil {
		rec.Status = "failed"
		rec.Error = runErr.Error()
	}
	if err := e.rules.RecordRun(ctx, rec); err != nil {
		log.Printf("WARN: record automation run for %s: %v", ruleID, err)
	}
}
