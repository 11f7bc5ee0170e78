package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage tells the alert worker that a user's spending for
// a month crossed their savings target. It carries everything the
// worker needs to notify without calling back into the app.
type BudgetAlertMessage struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Month       string    `json:"month"`
	SpentCents  int64     `json:"spent_cents"`
	TargetCents int64     `json:"target_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID, username, email, month string, spentCents, targetCents int64) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:      userID,
		Username:    username,
		Email:       email,
		Month:       month,
		SpentCents:  spentCents,
		TargetCents: targetCents,
		Timestamp:   time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
