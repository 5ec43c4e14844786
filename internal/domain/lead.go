package domain

import "time"

// Lead is a submitted contact/brief request. It is immutable once created.
type Lead struct {
	ID            string    `json:"id"`
	Service       string    `json:"service"`
	Details       string    `json:"details"`
	ContactMethod string    `json:"contactMethod"`
	ContactValue  string    `json:"contactValue"`
	BudgetRange   string    `json:"budgetRange,omitempty"`
	Deadline      string    `json:"deadline,omitempty"`
	Consent       bool      `json:"consent"`
	CreatedAt     time.Time `json:"createdAt"`
	IP            string    `json:"-"`
}
