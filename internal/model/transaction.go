package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a financial transaction between two accounts. Amounts are
// stored in minor units (cents) as int64 to avoid floating point drift.
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	DateTime             time.Time         `json:"dateTime"`
	Description          string            `json:"description"`
	Total                int64             `json:"total"`
	IsSplit              bool              `json:"isSplit"`
	Category             string            `json:"category"`
	SourceAccountID      *uuid.UUID        `json:"sourceAccountId"`
	DestinationAccountID *uuid.UUID        `json:"destinationAccountId"`
	Lines                []TransactionLine `json:"lines"`
}

// TransactionLine is one leg of a transaction. A non-split transaction has
// exactly one line whose amount equals the transaction total.
type TransactionLine struct {
	Order       int    `json:"order"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Clone returns a deep copy. The execution engine mutates copies so that a
// failed run leaves the caller's transactions untouched.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.SourceAccountID != nil {
		id := *t.SourceAccountID
		c.SourceAccountID = &id
	}
	if t.DestinationAccountID != nil {
		id := *t.DestinationAccountID
		c.DestinationAccountID = &id
	}
	c.Lines = make([]TransactionLine, len(t.Lines))
	copy(c.Lines, t.Lines)
	return &c
}

// BelongsToAccount reports whether the transaction touches the given account
// on either side.
func (t *Transaction) BelongsToAccount(accountID uuid.UUID) bool {
	if t.SourceAccountID != nil && *t.SourceAccountID == accountID {
		return true
	}
	if t.DestinationAccountID != nil && *t.DestinationAccountID == accountID {
		return true
	}
	return false
}
