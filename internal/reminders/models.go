// Package reminders is the durable due-date queue behind time-delayed booking
// actions. A reminder row is written when an appointment reaches the
// pre-client-confirmation state and consumed exactly once when its due date
// passes.
package reminders

import (
	"encoding/json"
	"time"
)

// CaseDispatchEmail is currently the only reminder case: resolve the parties
// from the payload and send the day-before confirmation mails.
const CaseDispatchEmail = "DISPATCH_EMAIL"

// Reminder is one pending timed action.
type Reminder struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Case        string          `json:"case"`
	Config      json.RawMessage `json:"config"`
	DueDate     time.Time       `json:"dueDate"`
	IsCompleted bool            `json:"isCompleted"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// EmailDispatchConfig is the payload of a DISPATCH_EMAIL reminder. Tokens are
// signed when the reminder is scheduled so dispatch needs no signer.
type EmailDispatchConfig struct {
	AppointmentID int64   `json:"appointmentId"`
	AgencyID      int64   `json:"agencyId"`
	ResidenceID   int64   `json:"residenceId"`
	AgentID       int64   `json:"agentId"`
	ClientName    string  `json:"clientName"`
	ClientEmail   string  `json:"clientMail"`
	Date          string  `json:"day"`
	Hour          float64 `json:"hour"`
	ConfirmToken  string  `json:"clientConfirmToken"`
	CancelToken   string  `json:"clientCancelToken"`
}
