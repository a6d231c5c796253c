package repositories

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/seatkeeper/internal/database"
	"github.com/prudhvinik1/seatkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgresLicenseRepository_CreateAndGet tests the defaults and constraints of the licenses table
func TestPostgresLicenseRepository_CreateAndGet(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	// ARRANGE
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	payload := `{"tier":"gold"}`
	license := &models.License{
		Key:        "pg-" + uuid.NewString(),
		Status:     models.StatusActive,
		Plan:       "Pro",
		MaxDevices: 3,
		ExpiresAt:  &expires,
		Payload:    &payload,
	}
	defer cleanupTestLicense(t, store, ctx, license)

	// ACT
	err := store.Licenses.Create(ctx, license)

	// ASSERT
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, license.ID, "ID should be generated")
	assert.False(t, license.CreatedAt.IsZero())

	byKey, err := store.Licenses.GetByKey(ctx, license.Key)
	require.NoError(t, err)
	assert.Equal(t, license.ID, byKey.ID)
	require.NotNil(t, byKey.ExpiresAt)
	assert.True(t, expires.Equal(*byKey.ExpiresAt))
	require.NotNil(t, byKey.Payload)
	assert.Equal(t, payload, *byKey.Payload)

	err = store.Licenses.Create(ctx, &models.License{Key: license.Key, Status: models.StatusActive, Plan: "Free", MaxDevices: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Licenses.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPostgresLicenseRepository_UpdateFields tests partial updates and clearing the expiry
func TestPostgresLicenseRepository_UpdateFields(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	license := createTestLicense(t, store, ctx, 1)
	defer cleanupTestLicense(t, store, ctx, license)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	status := models.StatusSuspended
	updated, err := store.Licenses.UpdateFields(ctx, license.ID, models.LicenseUpdate{Status: &status, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, updated.Status)
	assert.Equal(t, license.Plan, updated.Plan, "unsupplied fields keep their values")
	require.NotNil(t, updated.ExpiresAt)

	cleared, err := store.Licenses.UpdateFields(ctx, license.ID, models.LicenseUpdate{ClearExpiry: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)
	assert.False(t, cleared.UpdatedAt.Before(updated.UpdatedAt))

	_, err = store.Licenses.UpdateFields(ctx, uuid.New(), models.LicenseUpdate{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPostgresLicenseRepository_DeleteCascades tests that devices go away with their license
func TestPostgresLicenseRepository_DeleteCascades(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	license := createTestLicense(t, store, ctx, 2)
	require.NoError(t, store.Devices.Create(ctx, &models.Device{LicenseID: license.ID, HWID: "h1"}))
	require.NoError(t, store.Devices.Create(ctx, &models.Device{LicenseID: license.ID, HWID: "h2"}))

	require.NoError(t, store.Licenses.Delete(ctx, license.ID))

	count, err := store.Devices.CountByLicenseID(ctx, license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.ErrorIs(t, store.Licenses.Delete(ctx, license.ID), ErrNotFound)
}

// TestPostgresDeviceRepository_Constraints tests the (license_id, hwid) unique key and the FK
func TestPostgresDeviceRepository_Constraints(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	license := createTestLicense(t, store, ctx, 2)
	defer cleanupTestLicense(t, store, ctx, license)

	require.NoError(t, store.Devices.Create(ctx, &models.Device{LicenseID: license.ID, HWID: "h1"}))

	err := store.Devices.Create(ctx, &models.Device{LicenseID: license.ID, HWID: "h1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = store.Devices.Create(ctx, &models.Device{LicenseID: uuid.New(), HWID: "h1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPostgresDeviceRepository_Touch tests that a refresh keeps metadata the client omitted
func TestPostgresDeviceRepository_Touch(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	license := createTestLicense(t, store, ctx, 1)
	defer cleanupTestLicense(t, store, ctx, license)

	hostname := "box"
	device := &models.Device{LicenseID: license.ID, HWID: "h1", Hostname: &hostname}
	require.NoError(t, store.Devices.Create(ctx, device))

	require.NoError(t, store.Devices.Touch(ctx, device, models.DeviceMetadata{Platform: "linux"}))
	require.NotNil(t, device.Hostname)
	assert.Equal(t, "box", *device.Hostname)
	require.NotNil(t, device.Platform)
	assert.Equal(t, "linux", *device.Platform)

	require.NoError(t, store.Devices.Delete(ctx, license.ID, "h1"))
	assert.ErrorIs(t, store.Devices.Touch(ctx, device, models.DeviceMetadata{}), ErrNotFound)
}

// TestPostgresSeatLocker_SerializesAdmissions tests that concurrent count-then-insert
// sequences under the license lock never exceed max_devices
func TestPostgresSeatLocker_SerializesAdmissions(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	const maxDevices = 3
	license := createTestLicense(t, store, ctx, maxDevices)
	defer cleanupTestLicense(t, store, ctx, license)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Seats.WithinLicenseLock(ctx, license.ID, func(locked *models.License, devices DeviceRepository) error {
				used, err := devices.CountByLicenseID(ctx, locked.ID)
				if err != nil {
					return err
				}
				if used >= locked.MaxDevices {
					return nil
				}
				return devices.Create(ctx, &models.Device{LicenseID: locked.ID, HWID: uuid.NewString()})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.Devices.CountByLicenseID(ctx, license.ID)
	require.NoError(t, err)
	assert.Equal(t, maxDevices, count)
}

// TestPostgresSeatLocker_RollsBackOnError tests that writes made by a failing fn are discarded
func TestPostgresSeatLocker_RollsBackOnError(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	license := createTestLicense(t, store, ctx, 2)
	defer cleanupTestLicense(t, store, ctx, license)

	err := store.Seats.WithinLicenseLock(ctx, license.ID, func(locked *models.License, devices DeviceRepository) error {
		require.NoError(t, devices.Create(ctx, &models.Device{LicenseID: locked.ID, HWID: "h1"}))
		return devices.Create(ctx, &models.Device{LicenseID: locked.ID, HWID: "h1"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	count, err := store.Devices.CountByLicenseID(ctx, license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = store.Seats.WithinLicenseLock(ctx, uuid.New(), func(*models.License, DeviceRepository) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

// Helper functions

// getTestPool connects to TEST_DATABASE_URL and applies migrations, or skips the test.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	_, err = database.Migrate(context.Background(), pool)
	require.NoError(t, err, "Failed to migrate test database")
	return pool
}

func createTestLicense(t *testing.T, store *Store, ctx context.Context, maxDevices int) *models.License {
	t.Helper()
	license := &models.License{
		Key:        "pg-" + uuid.NewString(),
		Status:     models.StatusActive,
		Plan:       models.DefaultPlan,
		MaxDevices: maxDevices,
	}
	require.NoError(t, store.Licenses.Create(ctx, license), "Failed to create test license")
	return license
}

// cleanupTestLicense deletes the license (cascades to devices)
func cleanupTestLicense(t *testing.T, store *Store, ctx context.Context, license *models.License) {
	if license.ID == uuid.Nil {
		return
	}
	err := store.Licenses.Delete(ctx, license.ID)
	if err != nil && err != ErrNotFound {
		t.Logf("Warning: failed to cleanup test license: %v", err)
	}
}
