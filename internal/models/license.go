package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
)

const (
	DefaultPlan       = "Free"
	DefaultMaxDevices = 1
)

type License struct {
	ID         uuid.UUID  `json:"id"`
	Key        string     `json:"key"`
	Status     string     `json:"status"`
	Plan       string     `json:"plan"`
	MaxDevices int        `json:"max_devices"`
	MaxVersion *string    `json:"max_version,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Payload    *string    `json:"payload,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (l *License) IsActive() bool {
	return l.Status == StatusActive
}

// IsExpired reports whether the license has an expiry that lies before now.
// A license without an expiry never expires.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// LicenseUpdate carries the fields an admin patch supplied. Nil means "leave as is".
// ClearExpiry wins over ExpiresAt and removes the expiry entirely.
type LicenseUpdate struct {
	Key         *string
	Status      *string
	Plan        *string
	MaxDevices  *int
	MaxVersion  *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	Payload     *string
	Notes       *string
}

// Apply copies every supplied field onto l. It does not touch UpdatedAt.
func (u LicenseUpdate) Apply(l *License) {
	if u.Key != nil {
		l.Key = *u.Key
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.Plan != nil {
		l.Plan = *u.Plan
	}
	if u.MaxDevices != nil {
		l.MaxDevices = *u.MaxDevices
	}
	if u.MaxVersion != nil {
		l.MaxVersion = stringPtr(*u.MaxVersion)
	}
	if u.ClearExpiry {
		l.ExpiresAt = nil
	} else if u.ExpiresAt != nil {
		t := *u.ExpiresAt
		l.ExpiresAt = &t
	}
	if u.Payload != nil {
		l.Payload = stringPtr(*u.Payload)
	}
	if u.Notes != nil {
		l.Notes = stringPtr(*u.Notes)
	}
}

func stringPtr(s string) *string {
	return &s
}
