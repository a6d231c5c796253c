package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/prudhvinik1/seatkeeper/internal/repositories"
	"github.com/rs/zerolog/log"
)

type AdmissionOutcome int

const (
	Admitted AdmissionOutcome = iota + 1
	Refreshed
	SeatLimitExceeded
)

func (o AdmissionOutcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Refreshed:
		return "refreshed"
	case SeatLimitExceeded:
		return "seat_limit_exceeded"
	default:
		return "unknown"
	}
}

// Admission is the allocator's decision. Device is nil for SeatLimitExceeded.
// UsedDevices is the license's device count right after the decision. License is
// the row the decision was made against: the copy read under the license lock when
// one was taken, otherwise the caller's.
type Admission struct {
	Outcome     AdmissionOutcome
	Device      *models.Device
	UsedDevices int
	License     *models.License
}

// SeatAllocator binds hardware ids to licenses without ever letting the number of
// bound devices exceed the license's max_devices.
type SeatAllocator struct {
	devices repositories.DeviceRepository
	seats   repositories.SeatLocker
}

func NewSeatAllocator(devices repositories.DeviceRepository, seats repositories.SeatLocker) *SeatAllocator {
	return &SeatAllocator{devices: devices, seats: seats}
}

// AdmitOrRefresh refreshes an existing binding or admits a new one if a seat is free.
//
// Refreshing never takes the license lock. Admission runs the re-check, the count and
// the insert under SeatLocker, so concurrent admissions for one license are decided
// one at a time against the committed device set.
//
// A first-time admission is not idempotent: if the caller gives up after the insert
// committed, a retry finds the binding and refreshes it, but a seat has been used.
func (a *SeatAllocator) AdmitOrRefresh(ctx context.Context, license *models.License, hwid string, meta models.DeviceMetadata) (*Admission, error) {
	device, err := a.devices.GetByHWID(ctx, license.ID, hwid)
	switch {
	case err == nil:
		admission, err := a.refresh(ctx, a.devices, license, device, meta)
		if !errors.Is(err, repositories.ErrNotFound) {
			return admission, err
		}
		// Removed by an operator since the lookup: treat it as a new device.
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	var admission *Admission
	err = a.seats.WithinLicenseLock(ctx, license.ID, func(locked *models.License, devices repositories.DeviceRepository) error {
		var err error
		admission, err = a.admitLocked(ctx, locked, devices, hwid, meta)
		return err
	})

	switch {
	case err == nil:
		return admission, nil
	case errors.Is(err, repositories.ErrDuplicate):
		// Another writer bound this hwid between our lookup and insert. The
		// transaction is gone, so decide again from committed state.
		return a.reevaluate(ctx, license, hwid, meta)
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrLicenseNotFound
	default:
		return nil, fmt.Errorf("failed to admit device: %w", err)
	}
}

func (a *SeatAllocator) admitLocked(ctx context.Context, license *models.License, devices repositories.DeviceRepository, hwid string, meta models.DeviceMetadata) (*Admission, error) {
	// A concurrent request for the same hwid may have been admitted while we waited.
	existing, err := devices.GetByHWID(ctx, license.ID, hwid)
	if err == nil {
		return a.refresh(ctx, devices, license, existing, meta)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to re-check device: %w", err)
	}

	used, err := devices.CountByLicenseID(ctx, license.ID)
	if err != nil {
		return nil, err
	}
	if used >= license.MaxDevices {
		log.Debug().
			Str("license_id", license.ID.String()).
			Str("hwid", hwid).
			Int("used_devices", used).
			Int("max_devices", license.MaxDevices).
			Msg("Seat limit reached")
		return &Admission{Outcome: SeatLimitExceeded, UsedDevices: used, License: license}, nil
	}

	device := &models.Device{LicenseID: license.ID, HWID: hwid}
	meta.ApplyTo(device)
	if err := devices.Create(ctx, device); err != nil {
		return nil, err
	}

	log.Debug().
		Str("license_id", license.ID.String()).
		Str("hwid", hwid).
		Int("used_devices", used+1).
		Msg("Device admitted")
	return &Admission{Outcome: Admitted, Device: device, UsedDevices: used + 1, License: license}, nil
}

func (a *SeatAllocator) refresh(ctx context.Context, devices repositories.DeviceRepository, license *models.License, device *models.Device, meta models.DeviceMetadata) (*Admission, error) {
	if err := devices.Touch(ctx, device, meta); err != nil {
		return nil, fmt.Errorf("failed to refresh device: %w", err)
	}
	used, err := devices.CountByLicenseID(ctx, license.ID)
	if err != nil {
		return nil, err
	}
	return &Admission{Outcome: Refreshed, Device: device, UsedDevices: used, License: license}, nil
}

func (a *SeatAllocator) reevaluate(ctx context.Context, license *models.License, hwid string, meta models.DeviceMetadata) (*Admission, error) {
	device, err := a.devices.GetByHWID(ctx, license.ID, hwid)
	if err == nil {
		return a.refresh(ctx, a.devices, license, device, meta)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	used, err := a.devices.CountByLicenseID(ctx, license.ID)
	if err != nil {
		return nil, err
	}
	return &Admission{Outcome: SeatLimitExceeded, UsedDevices: used, License: license}, nil
}
