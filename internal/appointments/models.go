// Package appointments holds the booking state machine: creation with
// write-time availability re-validation, token-driven multi-party
// confirmation, rescheduling, and the stale-appointment sweep.
package appointments

import "time"

// Status is an appointment's position in the confirmation protocol.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPendingOwner  Status = "PENDING_OWNER"
	StatusPendingClient Status = "PENDING_CLIENT"
	StatusAccepted      Status = "ACCEPTED"
	StatusRejected      Status = "REJECTED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusCanceled      Status = "CANCELED"
	StatusReprogrammed  Status = "REPROGRAMMED"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCanceled
}

// Live reports whether the appointment still occupies its agent's time.
func (s Status) Live() bool {
	return s != StatusCanceled && s != StatusRejected
}

// Appointment is one requested property viewing.
type Appointment struct {
	ID                int64   `json:"id"`
	Date              string  `json:"date"` // dd-mm-yyyy, zero-padded
	Hour              float64 `json:"hour"`
	Duration          float64 `json:"duration"`
	Notes             string  `json:"notes,omitempty"`
	ClientID          int64   `json:"clientId"`
	AgentID           int64   `json:"agentId"`
	ResidenceID       int64   `json:"residenceId"`
	OwnerConfirmation bool    `json:"ownerConfirmation"`
	AgentConfirmation bool    `json:"agentConfirmation"`
	Status            Status  `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusHistory is one row of the append-only audit trail.
type StatusHistory struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointmentId"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SweepCandidate is an appointment eligible for the stale sweep, joined with
// its agent's agency so notifications can be resolved.
type SweepCandidate struct {
	Appointment
	AgencyID int64
}

// Details is the public read model behind details-by-token links.
type Details struct {
	Status        Status `json:"status"`
	Date          string `json:"date"`
	Hour          string `json:"hour"` // HH:MM
	ResidenceName string `json:"residenceName"`
	ClientName    string `json:"clientName"`
}
