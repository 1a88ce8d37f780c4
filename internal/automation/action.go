package automation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shalak/assetgridapp/internal/model"
)

// Action is one versioned, keyed unit of mutation applied to matched
// transactions. The catalogue is closed: new kinds are added by registering
// a codec in NewRegistry, never by open subclassing.
type Action interface {
	Key() string
	Version() int
	Apply(tx *model.Transaction) error
}

const (
	ActionKeySetTimestamp   = "set-timestamp"
	ActionKeySetDescription = "set-description"
	ActionKeySetAmount      = "set-amount"
)

// SetTimestampAction overwrites a matched transaction's date/time with a
// fixed value.
type SetTimestampAction struct {
	Value time.Time `json:"value"`
}

func (a *SetTimestampAction) Key() string  { return ActionKeySetTimestamp }
func (a *SetTimestampAction) Version() int { return 1 }

func (a *SetTimestampAction) Apply(tx *model.Transaction) error {
	tx.DateTime = a.Value
	return nil
}

// SetDescriptionAction overwrites the description with a fixed string.
type SetDescriptionAction struct {
	Value string `json:"value"`
}

func (a *SetDescriptionAction) Key() string  { return ActionKeySetDescription }
func (a *SetDescriptionAction) Version() int { return 1 }

func (a *SetDescriptionAction) Apply(tx *model.Transaction) error {
	tx.Description = a.Value
	return nil
}

// SetAmountAction overwrites a transaction's total and its single line's
// amount with a fixed value. Split transactions are left unmodified; the
// action cannot know how to distribute the new total over multiple lines.
type SetAmountAction struct {
	Value int64 `json:"value"`
}

func (a *SetAmountAction) Key() string  { return ActionKeySetAmount }
func (a *SetAmountAction) Version() int { return 1 }

func (a *SetAmountAction) Apply(tx *model.Transaction) error {
	if tx.IsSplit {
		return nil
	}
	if len(tx.Lines) != 1 {
		return fmt.Errorf("non-split transaction %s has %d lines", tx.ID, len(tx.Lines))
	}
	tx.Total = a.Value
	tx.Lines[0].Amount = a.Value
	return nil
}

// setAmountPayload is the wire form of set-amount. Amounts are int64 minor
// units; clients that cannot represent 64-bit integers send valueString
// instead, matching the original persisted format.
type setAmountPayload struct {
	Value       *int64 `json:"value,omitempty"`
	ValueString string `json:"valueString,omitempty"`
}

func decodeSetTimestamp(data []byte) (Action, error) {
	var action SetTimestampAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ActionKeySetTimestamp, err)
	}
	return &action, nil
}

func decodeSetDescription(data []byte) (Action, error) {
	var action SetDescriptionAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ActionKeySetDescription, err)
	}
	return &action, nil
}

func decodeSetAmount(data []byte) (Action, error) {
	var payload setAmountPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ActionKeySetAmount, err)
	}
	if payload.Value != nil {
		return &SetAmountAction{Value: *payload.Value}, nil
	}
	if payload.ValueString != "" {
		value, err := strconv.ParseInt(payload.ValueString, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: parse valueString: %w", ActionKeySetAmount, err)
		}
		return &SetAmountAction{Value: value}, nil
	}
	return nil, fmt.Errorf("decode %s: missing value", ActionKeySetAmount)
}
