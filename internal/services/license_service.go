package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/prudhvinik1/seatkeeper/internal/repositories"
)

// Reason is the machine-readable outcome of a check. Message carries the
// human-readable text sent to clients.
type Reason string

const (
	ReasonActive              Reason = "active"
	ReasonKeyNotFound         Reason = "key_not_found"
	ReasonKeyDisabled         Reason = "key_disabled"
	ReasonKeyExpired          Reason = "key_expired"
	ReasonDeviceLimitExceeded Reason = "device_limit_exceeded"
)

const (
	MessageActive              = "active"
	MessageKeyNotFound         = "key not found"
	MessageKeyExpired          = "key expired"
	MessageDeviceLimitExceeded = "device limit exceeded"
)

func disabledMessage(status string) string {
	return fmt.Sprintf("key disabled (%s)", status)
}

type CheckRequest struct {
	Key      string
	HWID     string
	Metadata models.DeviceMetadata
}

type ValidationResult struct {
	Valid       bool
	Reason      Reason
	Message     string
	Outcome     AdmissionOutcome
	Plan        *string
	ExpiresAt   *time.Time
	MaxVersion  *string
	MaxDevices  int
	UsedDevices int
	Payload     *string
}

type LicenseService struct {
	licenses  repositories.LicenseRepository
	allocator *SeatAllocator
	now       func() time.Time
}

func NewLicenseService(licenses repositories.LicenseRepository, allocator *SeatAllocator) *LicenseService {
	return &LicenseService{
		licenses:  licenses,
		allocator: allocator,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *LicenseService) WithClock(now func() time.Time) *LicenseService {
	s.now = now
	return s
}

// Validate decides whether req.HWID may use req.Key. Business rejections come back
// as a result with Valid=false; only storage failures are returned as errors.
func (s *LicenseService) Validate(ctx context.Context, req CheckRequest) (*ValidationResult, error) {
	license, err := s.licenses.GetByKey(ctx, req.Key)
	if errors.Is(err, repositories.ErrNotFound) {
		return &ValidationResult{Reason: ReasonKeyNotFound, Message: MessageKeyNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}

	if !license.IsActive() {
		return &ValidationResult{Reason: ReasonKeyDisabled, Message: disabledMessage(license.Status)}, nil
	}

	if license.IsExpired(s.now()) {
		return &ValidationResult{Reason: ReasonKeyExpired, Message: MessageKeyExpired}, nil
	}

	admission, err := s.allocator.AdmitOrRefresh(ctx, license, req.HWID, req.Metadata)
	if errors.Is(err, ErrLicenseNotFound) {
		// Deleted between the key lookup and the seat lock.
		return &ValidationResult{Reason: ReasonKeyNotFound, Message: MessageKeyNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	// Echo the row the seat decision was made against, which may be newer than the key lookup.
	if admission.License != nil {
		license = admission.License
	}

	if admission.Outcome == SeatLimitExceeded {
		return &ValidationResult{
			Reason:      ReasonDeviceLimitExceeded,
			Message:     MessageDeviceLimitExceeded,
			Outcome:     admission.Outcome,
			MaxDevices:  license.MaxDevices,
			UsedDevices: admission.UsedDevices,
		}, nil
	}

	plan := license.Plan
	return &ValidationResult{
		Valid:       true,
		Reason:      ReasonActive,
		Message:     MessageActive,
		Outcome:     admission.Outcome,
		Plan:        &plan,
		ExpiresAt:   license.ExpiresAt,
		MaxVersion:  license.MaxVersion,
		MaxDevices:  license.MaxDevices,
		UsedDevices: admission.UsedDevices,
		Payload:     license.Payload,
	}, nil
}
