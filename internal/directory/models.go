// Package directory holds the tenant master data the booking flow reads:
// agencies, their agents, the residences they list, and the clients who book.
package directory

import "time"

type Agency struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"isActive"`
}

type Agent struct {
	ID            int64  `json:"id"`
	AgencyID      int64  `json:"agencyId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	AllResidences bool   `json:"allResidences"`
	IsActive      bool   `json:"isActive"`
}

type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Residence struct {
	ID         int64  `json:"id"`
	AgencyID   int64  `json:"agencyId"`
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	OwnerName  string `json:"ownerName,omitempty"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
	AllAgents  bool   `json:"allAgents"`
}

// AgencyConfig carries per-agency overrides of the booking horizon.
type AgencyConfig struct {
	MinScheduleDays int `json:"minScheduleDays"`
	MaxScheduleDays int `json:"maxScheduleDays"`
}

// Notification is an in-app message shown on the agency dashboard.
type Notification struct {
	ID        int64     `json:"id"`
	AgencyID  int64     `json:"agencyId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
