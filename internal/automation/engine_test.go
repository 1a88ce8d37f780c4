package automation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

type fakeTransactionStore struct {
	items      map[uuid.UUID]*model.Transaction
	applyCalls int
	applyErr   error
}

func newFakeTransactionStore(txs ...*model.Transaction) *fakeTransactionStore {
	items := make(map[uuid.UUID]*model.Transaction)
	for _, tx := range txs {
		items[tx.ID] = tx
	}
	return &fakeTransactionStore{items: items}
}

func (f *fakeTransactionStore) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	tx, ok := f.items[id]
	if !ok {
		return nil, NotFoundError("Transaction")
	}
	return tx.Clone(), nil
}

func (f *fakeTransactionStore) List(ctx context.Context, limit int) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range f.items {
		if len(out) >= limit {
			break
		}
		out = append(out, *tx.Clone())
	}
	return out, nil
}

func (f *fakeTransactionStore) ApplyChanges(ctx context.Context, txs []*model.Transaction) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	for _, tx := range txs {
		f.items[tx.ID] = tx.Clone()
	}
	return nil
}

type fakeRuleStore struct {
	rules     map[uuid.UUID]*AutomationRule
	bindings  map[uuid.UUID]*Binding // keyed by rule id, single test user
	triggered []AutomationRule
	runs      []RunRecord
}

func (f *fakeRuleStore) GetRule(ctx context.Context, id uuid.UUID) (*AutomationRule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return nil, NotFoundError("Automation")
	}
	return rule, nil
}

func (f *fakeRuleStore) GetBinding(ctx context.Context, userID, ruleID uuid.UUID) (*Binding, error) {
	return f.bindings[ruleID], nil
}

func (f *fakeRuleStore) ListTriggered(ctx context.Context, mode RunMode) ([]AutomationRule, error) {
	return f.triggered, nil
}

func (f *fakeRuleStore) RecordRun(ctx context.Context, rec RunRecord) error {
	f.runs = append(f.runs, rec)
	return nil
}

func coffeeRule(actions ...string) *AutomationRule {
	raw := make([]json.RawMessage, len(actions))
	for i, a := range actions {
		raw[i] = json.RawMessage(a)
	}
	return &AutomationRule{
		ID:       uuid.New(),
		Name:     "Normalize coffee",
		Version:  RuleSchemaVersion,
		Triggers: TriggerFlags{Create: true},
		Query:    &Clause{Field: "description", Operator: OpContains, Value: "coffee"},
		Actions:  raw,
	}
}

func engineFixture(rule *AutomationRule, permission Permission, txs ...*model.Transaction) (*Engine, *fakeTransactionStore, *fakeRuleStore, *model.UserContext) {
	user := &model.UserContext{ID: uuid.New(), Email: "user@example.com"}
	transactions := newFakeTransactionStore(txs...)
	rules := &fakeRuleStore{
		rules:    map[uuid.UUID]*AutomationRule{rule.ID: rule},
		bindings: map[uuid.UUID]*Binding{},
	}
	if permission != PermissionNone {
		rules.bindings[rule.ID] = &Binding{
			UserID: user.ID, RuleID: rule.ID, Permission: permission, Enabled: true,
		}
	}
	engine := NewEngine(transactions, rules, NewRegistry(), 1000)
	return engine, transactions, rules, user
}

func TestEngine_RunNow(t *testing.T) {
	rule := coffeeRule(
		`{"key": "set-description", "version": 1, "value": "Coffee"}`,
		`{"key": "set-amount", "version": 1, "value": 500}`,
	)
	coffee := testTx("morning coffee", 450)
	groceries := testTx("groceries", 12000)
	engine, transactions, rules, user := engineFixture(rule, PermissionModify, coffee, groceries)

	applied, err := engine.RunNow(context.Background(), user, rule.ID, "")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}

	// actions applied in list order to the matched transaction only
	got := transactions.items[coffee.ID]
	if got.Description != "Coffee" || got.Total != 500 {
		t.Fatalf("unexpected committed state: %+v", got)
	}
	if transactions.items[groceries.ID].Description != "groceries" {
		t.Fatal("non-matching transaction must be untouched")
	}

	// run recorded as completed
	if len(rules.runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(rules.runs))
	}
	rec := rules.runs[0]
	if rec.Mode != RunModeNow || rec.Status != "completed" || rec.Matched != 1 || rec.Applied != 1 {
		t.Fatalf("unexpected run record: %+v", rec)
	}
}

func TestEngine_RunNow_PermissionGate(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	tx := testTx("coffee", 450)

	// read binding is not enough to execute
	engine, transactions, _, user := engineFixture(rule, PermissionRead, tx)
	_, err := engine.RunNow(context.Background(), user, rule.ID, "")
	if CodeOf(err) != CodePermissionDenied {
		t.Fatalf("expected %s, got %v", CodePermissionDenied, err)
	}
	if transactions.applyCalls != 0 {
		t.Fatal("denied run must not touch the store")
	}

	// anonymous caller
	engine, _, _, _ = engineFixture(rule, PermissionModify, tx)
	_, err = engine.RunNow(context.Background(), nil, rule.ID, "")
	if CodeOf(err) != CodeUnauthorized {
		t.Fatalf("expected %s, got %v", CodeUnauthorized, err)
	}
}

func TestEngine_RunNow_Filter(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	cheap := testTx("cheap coffee", 200)
	expensive := testTx("fancy coffee", 900)
	engine, transactions, _, user := engineFixture(rule, PermissionModify, cheap, expensive)

	applied, err := engine.RunNow(context.Background(), user, rule.ID, "transaction.total > 500")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 applied, got %d", applied)
	}
	if transactions.items[cheap.ID].Description != "cheap coffee" {
		t.Fatal("filtered-out transaction must be untouched")
	}
	if transactions.items[expensive.ID].Description != "Coffee" {
		t.Fatal("filtered-in transaction must be updated")
	}
}

func TestEngine_RunNow_BadFilter(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	engine, _, _, user := engineFixture(rule, PermissionModify, testTx("coffee", 450))

	_, err := engine.RunNow(context.Background(), user, rule.ID, "transaction.total >")
	if CodeOf(err) != CodeValidationFailed {
		t.Fatalf("expected %s, got %v", CodeValidationFailed, err)
	}
}

func TestEngine_UndecodableActionHasNoSideEffects(t *testing.T) {
	rule := coffeeRule(
		`{"key": "set-description", "version": 1, "value": "Coffee"}`,
		`{"key": "set-category", "version": 1, "value": "drinks"}`,
	)
	tx := testTx("coffee", 450)
	engine, transactions, rules, user := engineFixture(rule, PermissionModify, tx)

	_, err := engine.RunNow(context.Background(), user, rule.ID, "")
	if CodeOf(err) != CodeUnknownActionType {
		t.Fatalf("expected %s, got %v", CodeUnknownActionType, err)
	}

	// nothing applied, even though the first action was decodable
	if transactions.applyCalls != 0 {
		t.Fatal("failed run must not reach the store")
	}
	if transactions.items[tx.ID].Description != "coffee" {
		t.Fatal("failed run must leave transactions untouched")
	}

	// failure is still recorded
	if len(rules.runs) != 1 || rules.runs[0].Status != "failed" {
		t.Fatalf("expected failed run record, got %+v", rules.runs)
	}
}

func TestEngine_CommitFailureLeavesCallerUntouched(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	tx := testTx("coffee", 450)
	engine, transactions, _, user := engineFixture(rule, PermissionModify, tx)
	transactions.applyErr = context.DeadlineExceeded

	_, err := engine.RunNow(context.Background(), user, rule.ID, "")
	if CodeOf(err) != CodePersistenceFailed {
		t.Fatalf("expected %s, got %v", CodePersistenceFailed, err)
	}
	if transactions.items[tx.ID].Description != "coffee" {
		t.Fatal("failed commit must leave stored transactions untouched")
	}
}

func TestEngine_NoMatchesSkipsCommit(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	engine, transactions, rules, user := engineFixture(rule, PermissionModify, testTx("groceries", 9000))

	applied, err := engine.RunNow(context.Background(), user, rule.ID, "")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected 0 applied, got %d", applied)
	}
	if transactions.applyCalls != 0 {
		t.Fatal("no-match run must not call the store")
	}
	if len(rules.runs) != 1 || rules.runs[0].Matched != 0 {
		t.Fatalf("expected recorded no-match run, got %+v", rules.runs)
	}
}

func TestEngine_CreateTrigger(t *testing.T) {
	rule := coffeeRule(`{"key": "set-description", "version": 1, "value": "Coffee"}`)
	tx := testTx("coffee to go", 350)
	engine, transactions, rules, _ := engineFixture(rule, PermissionModify, tx)
	rules.triggered = []AutomationRule{*rule}

	engine.OnTransactionCreated(context.Background(), tx)

	// trigger callers observe the post-automation state on their own pointer
	if tx.Description != "Coffee" {
		t.Fatalf("expected caller's transaction updated, got %q", tx.Description)
	}
	if transactions.items[tx.ID].Description != "Coffee" {
		t.Fatal("expected committed transaction updated")
	}
	if len(rules.runs) != 1 || rules.runs[0].Mode != RunModeCreate {
		t.Fatalf("expected create-mode run record, got %+v", rules.runs)
	}

	// a non-matching create leaves its transaction untouched
	groceries := testTx("groceries", 9000)
	transactions.items[groceries.ID] = groceries
	engine.OnTransactionCreated(context.Background(), groceries)
	if groceries.Description != "groceries" {
		t.Fatalf("non-matching transaction must be untouched, got %q", groceries.Description)
	}
}

func TestEngine_TriggerFailureDoesNotPropagate(t *testing.T) {
	rule := coffeeRule(`{"key": "set-category", "version": 1, "value": "drinks"}`)
	tx := testTx("coffee", 450)
	engine, transactions, rules, _ := engineFixture(rule, PermissionModify, tx)
	rules.triggered = []AutomationRule{*rule}

	// must not panic or unwind; the triggering write stands
	engine.OnTransactionModified(context.Background(), tx)

	if tx.Description != "coffee" {
		t.Fatal("failed trigger must leave the transaction untouched")
	}
	if transactions.applyCalls != 0 {
		t.Fatal("failed trigger must not reach the store")
	}
	if len(rules.runs) != 1 || rules.runs[0].Status != "failed" {
		t.Fatalf("expected failed run record, got %+v", rules.runs)
	}
}
