package amqp

import (
	"encoding/json"
	"time"
)

// Refresh reasons carried on balance refresh messages.
const (
	ReasonRecordCreated = "record_created"
	ReasonRecordDeleted = "record_deleted"
)

// BalanceRefreshMessage asks the account service to recompute one account's
// cached balance. It carries only the account ID and the reason; the worker
// fetches the sums itself, so a duplicate or reordered delivery is harmless.
type BalanceRefreshMessage struct {
	AccountID int64     `json:"account_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBalanceRefreshMessage(accountID int64, reason string) *BalanceRefreshMessage {
	return &BalanceRefreshMessage{
		AccountID: accountID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *BalanceRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BalanceRefreshMessageFromJSON(data []byte) (*BalanceRefreshMessage, error) {
	var msg BalanceRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
