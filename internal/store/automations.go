package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/automation"
)

// AutomationStore persists automation rules, per-user bindings, and the run
// audit log. It implements the engine's RuleStore contract and backs the
// rule CRUD surface.
type AutomationStore struct {
	store *Store
}

func NewAutomationStore(s *Store) *AutomationStore {
	return &AutomationStore{store: s}
}

// GetRule loads one rule with its query and action list decoded.
func (as *AutomationStore) GetRule(ctx context.Context, id uuid.UUID) (*automation.AutomationRule, error) {
	pb := as.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT id, name, description, version, trigger_on_create, trigger_on_modify, query, actions
		FROM transaction_automations WHERE id = %s`, pb.Add(id.String()))

	return scanRule(as.store.DB.QueryRowContext(ctx, query, pb.Params()...))
}

// CreateRule inserts a rule and binds the creator with Modify permission and
// the enabled flag set, in one database transaction.
func (as *AutomationStore) CreateRule(ctx context.Context, rule *automation.AutomationRule, creator uuid.UUID) error {
	queryJSON, actionsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	dbTx, err := as.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck

	pb := as.store.Dialect.NewParamBuilder()
	ins := fmt.Sprintf(`INSERT INTO transaction_automations
		(id, name, description, version, trigger_on_create, trigger_on_modify, query, actions)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(rule.ID.String()), pb.Add(rule.Name), pb.Add(rule.Description), pb.Add(rule.Version),
		pb.Add(rule.Triggers.Create), pb.Add(rule.Triggers.Modify), pb.Add(queryJSON), pb.Add(actionsJSON))
	if _, err := dbTx.ExecContext(ctx, ins, pb.Params()...); err != nil {
		return fmt.Errorf("insert automation %s: %w", rule.ID, err)
	}

	pb = as.store.Dialect.NewParamBuilder()
	bind := fmt.Sprintf(`INSERT INTO user_transaction_automations (user_id, automation_id, permissions, enabled)
		VALUES (%s, %s, %s, %s)`,
		pb.Add(creator.String()), pb.Add(rule.ID.String()), pb.Add(int(automation.PermissionModify)), pb.Add(true))
	if _, err := dbTx.ExecContext(ctx, bind, pb.Params()...); err != nil {
		return fmt.Errorf("bind creator to automation %s: %w", rule.ID, err)
	}

	return dbTx.Commit()
}

// UpdateRule replaces the whole rule record: metadata, query, and actions in
// one UPDATE. Rules are never patched field by field.
func (as *AutomationStore) UpdateRule(ctx context.Context, rule *automation.AutomationRule) error {
	queryJSON, actionsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	pb := as.store.Dialect.NewParamBuilder()
	upd := fmt.Sprintf(`UPDATE transaction_automations SET
		name = %s, description = %s, version = %s, trigger_on_create = %s, trigger_on_modify = %s,
		query = %s, actions = %s
		WHERE id = %s`,
		pb.Add(rule.Name), pb.Add(rule.Description), pb.Add(rule.Version),
		pb.Add(rule.Triggers.Create), pb.Add(rule.Triggers.Modify),
		pb.Add(queryJSON), pb.Add(actionsJSON), pb.Add(rule.ID.String()))

	result, err := as.store.DB.ExecContext(ctx, upd, pb.Params()...)
	if err != nil {
		return fmt.Errorf("update automation %s: %w", rule.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update automation %s: %w", rule.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule removes a rule, cascading its bindings and run log.
func (as *AutomationStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	dbTx, err := as.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck

	// Explicit cascade so behavior does not depend on FK enforcement.
	for _, table := range []string{"automation_runs", "user_transaction_automations"} {
		pb := as.store.Dialect.NewParamBuilder()
		del := fmt.Sprintf("DELETE FROM %s WHERE automation_id = %s", table, pb.Add(id.String()))
		if _, err := dbTx.ExecContext(ctx, del, pb.Params()...); err != nil {
			return fmt.Errorf("delete from %s for automation %s: %w", table, id, err)
		}
	}

	pb := as.store.Dialect.NewParamBuilder()
	del := fmt.Sprintf("DELETE FROM transaction_automations WHERE id = %s", pb.Add(id.String()))
	result, err := dbTx.ExecContext(ctx, del, pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete automation %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete automation %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return dbTx.Commit()
}

// GetBinding returns the user's binding on a rule, or (nil, nil) when the
// user has none.
func (as *AutomationStore) GetBinding(ctx context.Context, userID, ruleID uuid.UUID) (*automation.Binding, error) {
	pb := as.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT permissions, enabled FROM user_transaction_automations
		WHERE user_id = %s AND automation_id = %s`, pb.Add(userID.String()), pb.Add(ruleID.String()))

	var permissions int
	var enabled any
	err := as.store.DB.QueryRowContext(ctx, query, pb.Params()...).Scan(&permissions, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get binding: %w", err)
	}

	binding := &automation.Binding{
		UserID:     userID,
		RuleID:     ruleID,
		Permission: automation.Permission(permissions),
	}
	if binding.Enabled, err = scanBool(enabled); err != nil {
		return nil, err
	}
	return binding, nil
}

// SetEnabled toggles the per-user enabled flag on an existing binding.
func (as *AutomationStore) SetEnabled(ctx context.Context, userID, ruleID uuid.UUID, enabled bool) error {
	pb := as.store.Dialect.NewParamBuilder()
	upd := fmt.Sprintf(`UPDATE user_transaction_automations SET enabled = %s
		WHERE user_id = %s AND automation_id = %s`,
		pb.Add(enabled), pb.Add(userID.String()), pb.Add(ruleID.String()))

	result, err := as.store.DB.ExecContext(ctx, upd, pb.Params()...)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns summaries of every rule the user holds a Read-or-better
// binding on.
func (as *AutomationStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]automation.RuleSummary, error) {
	pb := as.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT a.id, a.name, a.description, b.permissions, b.enabled
		FROM transaction_automations a
		JOIN user_transaction_automations b ON b.automation_id = a.id
		WHERE b.user_id = %s AND b.permissions >= %s
		ORDER BY a.name`,
		pb.Add(userID.String()), pb.Add(int(automation.PermissionRead)))

	rows, err := as.store.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	summaries := []automation.RuleSummary{}
	for rows.Next() {
		var id string
		var summary automation.RuleSummary
		var permissions int
		var enabled any
		if err := rows.Scan(&id, &summary.Name, &summary.Description, &permissions, &enabled); err != nil {
			return nil, fmt.Errorf("scan automation summary: %w", err)
		}
		if summary.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse automation id: %w", err)
		}
		summary.Permission = automation.Permission(permissions)
		if summary.Enabled, err = scanBool(enabled); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// ListTriggered returns every rule carrying the trigger flag for the given
// mode that at least one user has enabled.
func (as *AutomationStore) ListTriggered(ctx context.Context, mode automation.RunMode) ([]automation.AutomationRule, error) {
	var flag string
	switch mode {
	case automation.RunModeCreate:
		flag = "trigger_on_create"
	case automation.RunModeModify:
		flag = "trigger_on_modify"
	default:
		return nil, fmt.Errorf("mode %s has no trigger flag", mode)
	}

	pb := as.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT a.id, a.name, a.description, a.version,
		a.trigger_on_create, a.trigger_on_modify, a.query, a.actions
		FROM transaction_automations a
		WHERE a.%s = %s AND EXISTS (
			SELECT 1 FROM user_transaction_automations b
			WHERE b.automation_id = a.id AND b.enabled = %s
		)
		ORDER BY a.name`, flag, pb.Add(true), pb.Add(true))

	rows, err := as.store.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list triggered automations: %w", err)
	}
	defer rows.Close()

	var rules []automation.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// RecordRun appends one row to the rule's run audit log.
func (as *AutomationStore) RecordRun(ctx context.Context, rec automation.RunRecord) error {
	d := as.store.Dialect
	pb := d.NewParamBuilder()
	ins := fmt.Sprintf(`INSERT INTO automation_runs (automation_id, mode, matched, applied, status, error, ran_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(rec.RuleID.String()), pb.Add(string(rec.Mode)), pb.Add(rec.Matched), pb.Add(rec.Applied),
		pb.Add(rec.Status), pb.Add(rec.Error), pb.Add(d.TimeParam(rec.At)))

	if _, err := as.store.DB.ExecContext(ctx, ins, pb.Params()...); err != nil {
		return fmt.Errorf("record run for %s: %w", rec.RuleID, err)
	}
	return nil
}

// ListRuns returns the most recent run records for a rule, newest first.
func (as *AutomationStore) ListRuns(ctx context.Context, ruleID uuid.UUID, limit int) ([]automation.RunRecord, error) {
	pb := as.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT automation_id, mode, matched, applied, status, error, ran_at
		FROM automation_runs WHERE automation_id = %s
		ORDER BY ran_at DESC, id DESC LIMIT %s`, pb.Add(ruleID.String()), pb.Add(limit))

	rows, err := as.store.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	records := []automation.RunRecord{}
	for rows.Next() {
		var id, mode string
		var ranAt any
		var rec automation.RunRecord
		if err := rows.Scan(&id, &mode, &rec.Matched, &rec.Applied, &rec.Status, &rec.Error, &ranAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if rec.RuleID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run automation id: %w", err)
		}
		rec.Mode = automation.RunMode(mode)
		if rec.At, err = scanTime(ranAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func encodeRule(rule *automation.AutomationRule) (queryJSON, actionsJSON string, err error) {
	q, err := json.Marshal(rule.Query)
	if err != nil {
		return "", "", fmt.Errorf("encode query for %s: %w", rule.ID, err)
	}
	a, err := json.Marshal(rule.Actions)
	if err != nil {
		return "", "", fmt.Errorf("encode actions for %s: %w", rule.ID, err)
	}
	return string(q), string(a), nil
}

func scanRule(row rowScanner) (*automation.AutomationRule, error) {
	var (
		id, name, description  string
		version                int
		onCreate, onModify     any
		queryJSON, actionsJSON []byte
	)
	err := row.Scan(&id, &name, &description, &version, &onCreate, &onModify, &queryJSON, &actionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan automation: %w", err)
	}

	rule := &automation.AutomationRule{Name: name, Description: description, Version: version}

	if rule.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse automation id: %w", err)
	}
	if rule.Triggers.Create, err = scanBool(onCreate); err != nil {
		return nil, err
	}
	if rule.Triggers.Modify, err = scanBool(onModify); err != nil {
		return nil, err
	}
	if rule.Query, err = automation.UnmarshalQueryExpression(queryJSON); err != nil {
		return nil, fmt.Errorf("decode query for automation %s: %w", id, err)
	}
	if err = json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
		return nil, fmt.Errorf("decode actions for automation %s: %w", id, err)
	}
	return rule, nil
}
