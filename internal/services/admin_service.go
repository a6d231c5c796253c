package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/prudhvinik1/seatkeeper/internal/repositories"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type CreateLicenseInput struct {
	Key        string
	Status     string
	Plan       string
	MaxDevices *int
	MaxVersion *string
	ExpiresAt  *time.Time
	Payload    *string
	Notes      *string
}

type AdminService struct {
	licenses repositories.LicenseRepository
	devices  repositories.DeviceRepository
}

func NewAdminService(licenses repositories.LicenseRepository, devices repositories.DeviceRepository) *AdminService {
	return &AdminService{licenses: licenses, devices: devices}
}

func (s *AdminService) CreateLicense(ctx context.Context, in CreateLicenseInput) (*models.License, error) {
	// Check if key already exists
	_, err := s.licenses.GetByKey(ctx, in.Key)
	if err == nil {
		return nil, ErrKeyExists
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check key: %w", err)
	}

	license := &models.License{
		Key:        in.Key,
		Status:     in.Status,
		Plan:       in.Plan,
		MaxDevices: models.DefaultMaxDevices,
		MaxVersion: in.MaxVersion,
		ExpiresAt:  in.ExpiresAt,
		Payload:    in.Payload,
		Notes:      in.Notes,
	}
	if license.Status == "" {
		license.Status = models.StatusActive
	}
	if license.Plan == "" {
		license.Plan = models.DefaultPlan
	}
	if in.MaxDevices != nil {
		license.MaxDevices = *in.MaxDevices
	}

	// The unique constraint still decides when two creates race past the check above.
	err = s.licenses.Create(ctx, license)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrKeyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	log.Info().Str("license_id", license.ID.String()).Str("plan", license.Plan).Msg("License created")
	return license, nil
}

func (s *AdminService) GetLicense(ctx context.Context, id uuid.UUID) (*models.License, error) {
	license, err := s.licenses.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return license, nil
}

// ListLicenses pages through licenses in creation order. A non-positive limit means
// DefaultPageLimit; anything above MaxPageLimit is capped.
func (s *AdminService) ListLicenses(ctx context.Context, offset, limit int) ([]*models.License, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	licenses, err := s.licenses.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	return licenses, nil
}

func (s *AdminService) UpdateLicense(ctx context.Context, id uuid.UUID, update models.LicenseUpdate) (*models.License, error) {
	license, err := s.licenses.UpdateFields(ctx, id, update)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrLicenseNotFound
	}
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrKeyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	log.Info().Str("license_id", id.String()).Str("status", license.Status).Msg("License updated")
	return license, nil
}

// DeleteLicense removes the license and every device bound to it.
func (s *AdminService) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	err := s.licenses.Delete(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrLicenseNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete license: %w", err)
	}

	log.Info().Str("license_id", id.String()).Msg("License and devices deleted")
	return nil
}

func (s *AdminService) ListDevices(ctx context.Context, key string) ([]*models.Device, error) {
	license, err := s.licenseByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	devices, err := s.devices.ListByLicenseID(ctx, license.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// RemoveDevice unbinds hwid from the license, freeing its seat.
func (s *AdminService) RemoveDevice(ctx context.Context, key, hwid string) error {
	license, err := s.licenseByKey(ctx, key)
	if err != nil {
		return err
	}

	err = s.devices.Delete(ctx, license.ID, hwid)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	log.Info().Str("license_id", license.ID.String()).Str("hwid", hwid).Msg("Device removed, seat freed")
	return nil
}

func (s *AdminService) licenseByKey(ctx context.Context, key string) (*models.License, error) {
	license, err := s.licenses.GetByKey(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by key: %w", err)
	}
	return license, nil
}
