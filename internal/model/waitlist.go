package model

import "time"

// WaitlistStatus tracks how far a waitlist signup has progressed.
type WaitlistStatus string

const (
	WaitlistPending WaitlistStatus = "pending"
	WaitlistInvited WaitlistStatus = "invited"
	WaitlistJoined  WaitlistStatus = "joined"
)

func (s WaitlistStatus) Valid() bool {
	return s == WaitlistPending || s == WaitlistInvited || s == WaitlistJoined
}

// WaitlistEntry is a public signup for early access.
type WaitlistEntry struct {
	ID        int64          `json:"id" db:"id"`
	Email     string         `json:"email" db:"email"`
	Name      string         `json:"name" db:"name"`
	Company   string         `json:"company" db:"company"`
	Source    string         `json:"source" db:"source"`
	Status    WaitlistStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}
