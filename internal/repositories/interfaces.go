package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/seatkeeper/internal/models"
)

type LicenseRepository interface {
	Create(ctx context.Context, license *models.License) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	GetByKey(ctx context.Context, key string) (*models.License, error)
	List(ctx context.Context, offset, limit int) ([]*models.License, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update models.LicenseUpdate) (*models.License, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByHWID(ctx context.Context, licenseID uuid.UUID, hwid string) (*models.Device, error)
	ListByLicenseID(ctx context.Context, licenseID uuid.UUID) ([]*models.Device, error)
	CountByLicenseID(ctx context.Context, licenseID uuid.UUID) (int, error)
	Touch(ctx context.Context, device *models.Device, meta models.DeviceMetadata) error
	Delete(ctx context.Context, licenseID uuid.UUID, hwid string) error
}

// SeatLocker serializes writers of one license's device set.
//
// WithinLicenseLock calls fn while holding an exclusive lock on the license and hands
// it the license as read under that lock plus a DeviceRepository bound to the same
// transaction. The lock is released on every return path. If fn returns an error
// nothing it wrote is kept (Postgres) and the error is returned unchanged.
type SeatLocker interface {
	WithinLicenseLock(ctx context.Context, licenseID uuid.UUID, fn func(license *models.License, devices DeviceRepository) error) error
}

// Store bundles the repositories the services need.
type Store struct {
	Licenses LicenseRepository
	Devices  DeviceRepository
	Seats    SeatLocker
}
