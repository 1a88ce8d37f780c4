package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/model"
)

// TransactionStore persists transactions and their lines. It implements the
// engine's TransactionStore collaborator contract, including the atomic
// multi-transaction commit.
type TransactionStore struct {
	store *Store
}

func NewTransactionStore(s *Store) *TransactionStore {
	return &TransactionStore{store: s}
}

// Get loads one transaction with its lines.
func (ts *TransactionStore) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	pb := ts.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT id, date_time, description, total, is_split, category,
		source_account_id, destination_account_id
		FROM transactions WHERE id = %s`, pb.Add(id.String()))

	row := ts.store.DB.QueryRowContext(ctx, query, pb.Params()...)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	lines, err := ts.loadLines(ctx, []uuid.UUID{tx.ID})
	if err != nil {
		return nil, err
	}
	tx.Lines = lines[tx.ID]
	return tx, nil
}

// List returns up to limit transactions, newest first, with their lines.
func (ts *TransactionStore) List(ctx context.Context, limit int) ([]model.Transaction, error) {
	pb := ts.store.Dialect.NewParamBuilder()
	query := fmt.Sprintf(`SELECT id, date_time, description, total, is_split, category,
		source_account_id, destination_account_id
		FROM transactions ORDER BY date_time DESC, id LIMIT %s`, pb.Add(limit))

	rows, err := ts.store.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	var ids []uuid.UUID
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	lines, err := ts.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].Lines = lines[txs[i].ID]
	}
	return txs, nil
}

// Create inserts a transaction and its lines in one database transaction.
func (ts *TransactionStore) Create(ctx context.Context, tx *model.Transaction) error {
	dbTx, err := ts.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck

	if err := ts.insertTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	return dbTx.Commit()
}

// Update replaces a transaction row and its lines in one database
// transaction.
func (ts *TransactionStore) Update(ctx context.Context, tx *model.Transaction) error {
	dbTx, err := ts.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck

	if err := ts.updateTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	return dbTx.Commit()
}

// ApplyChanges commits every given transaction's mutations in one atomic
// unit: all rows or none. The execution engine relies on this for rule-run
// atomicity.
func (ts *TransactionStore) ApplyChanges(ctx context.Context, txs []*model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := ts.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck

	for _, tx := range txs {
		if err := ts.updateTransaction(ctx, dbTx, tx); err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (ts *TransactionStore) insertTransaction(ctx context.Context, q Querier, tx *model.Transaction) error {
	d := ts.store.Dialect
	pb := d.NewParamBuilder()
	query := fmt.Sprintf(`INSERT INTO transactions
		(id, date_time, description, total, is_split, category, source_account_id, destination_account_id)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(tx.ID.String()), pb.Add(d.TimeParam(tx.DateTime)), pb.Add(tx.Description),
		pb.Add(tx.Total), pb.Add(tx.IsSplit), pb.Add(tx.Category),
		pb.Add(uuidParam(tx.SourceAccountID)), pb.Add(uuidParam(tx.DestinationAccountID)))

	if _, err := q.ExecContext(ctx, query, pb.Params()...); err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return ts.replaceLines(ctx, q, tx)
}

func (ts *TransactionStore) updateTransaction(ctx context.Context, q Querier, tx *model.Transaction) error {
	d := ts.store.Dialect
	pb := d.NewParamBuilder()
	query := fmt.Sprintf(`UPDATE transactions SET
		date_time = %s, description = %s, total = %s, is_split = %s, category = %s,
		source_account_id = %s, destination_account_id = %s
		WHERE id = %s`,
		pb.Add(d.TimeParam(tx.DateTime)), pb.Add(tx.Description), pb.Add(tx.Total),
		pb.Add(tx.IsSplit), pb.Add(tx.Category),
		pb.Add(uuidParam(tx.SourceAccountID)), pb.Add(uuidParam(tx.DestinationAccountID)),
		pb.Add(tx.ID.String()))

	result, err := q.ExecContext(ctx, query, pb.Params()...)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return ts.replaceLines(ctx, q, tx)
}

func (ts *TransactionStore) replaceLines(ctx context.Context, q Querier, tx *model.Transaction) error {
	pb := ts.store.Dialect.NewParamBuilder()
	del := fmt.Sprintf("DELETE FROM transaction_lines WHERE transaction_id = %s", pb.Add(tx.ID.String()))
	if _, err := q.ExecContext(ctx, del, pb.Params()...); err != nil {
		return fmt.Errorf("delete lines for %s: %w", tx.ID, err)
	}

	for i, line := range tx.Lines {
		pb := ts.store.Dialect.NewParamBuilder()
		ins := fmt.Sprintf(`INSERT INTO transaction_lines (transaction_id, line_order, amount, description)
			VALUES (%s, %s, %s, %s)`,
			pb.Add(tx.ID.String()), pb.Add(i), pb.Add(line.Amount), pb.Add(line.Description))
		if _, err := q.ExecContext(ctx, ins, pb.Params()...); err != nil {
			return fmt.Errorf("insert line %d for %s: %w", i, tx.ID, err)
		}
	}
	return nil
}

func (ts *TransactionStore) loadLines(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.TransactionLine, error) {
	result := make(map[uuid.UUID][]model.TransactionLine, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pb := ts.store.Dialect.NewParamBuilder()
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = pb.Add(id.String())
	}
	query := fmt.Sprintf(`SELECT transaction_id, line_order, amount, description
		FROM transaction_lines WHERE transaction_id IN (%s)
		ORDER BY transaction_id, line_order`, strings.Join(placeholders, ", "))

	rows, err := ts.store.DB.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		var line model.TransactionLine
		if err := rows.Scan(&txID, &line.Order, &line.Amount, &line.Description); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		id, err := uuid.Parse(txID)
		if err != nil {
			return nil, fmt.Errorf("parse line transaction id: %w", err)
		}
		result[id] = append(result[id], line)
	}
	return result, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		id, description, category string
		dateTime, isSplit         any
		total                     int64
		sourceID, destID          sql.NullString
	)
	err := row.Scan(&id, &dateTime, &description, &total, &isSplit, &category, &sourceID, &destID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	tx := &model.Transaction{Description: description, Total: total, Category: category}

	if tx.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse transaction id: %w", err)
	}
	if tx.DateTime, err = scanTime(dateTime); err != nil {
		return nil, err
	}
	if tx.IsSplit, err = scanBool(isSplit); err != nil {
		return nil, err
	}
	if tx.SourceAccountID, err = parseNullUUID(sourceID); err != nil {
		return nil, err
	}
	if tx.DestinationAccountID, err = parseNullUUID(destID); err != nil {
		return nil, err
	}
	return tx, nil
}

func uuidParam(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", s.String, err)
	}
	return &id, nil
}
