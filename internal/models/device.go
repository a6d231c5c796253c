package models

import (
	"time"

	"github.com/google/uuid"
)

type Device struct {
	ID         uuid.UUID `json:"id"`
	LicenseID  uuid.UUID `json:"license_id"`
	HWID       string    `json:"hwid"`
	Hostname   *string   `json:"hostname"`
	Platform   *string   `json:"platform"`
	AppVersion *string   `json:"app_version"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// DeviceMetadata is the descriptive information a client sends with every check.
// Empty fields mean "not reported" and never overwrite stored values.
type DeviceMetadata struct {
	Hostname   string
	Platform   string
	AppVersion string
}

func (m DeviceMetadata) ApplyTo(d *Device) {
	if m.Hostname != "" {
		d.Hostname = stringPtr(m.Hostname)
	}
	if m.Platform != "" {
		d.Platform = stringPtr(m.Platform)
	}
	if m.AppVersion != "" {
		d.AppVersion = stringPtr(m.AppVersion)
	}
}
