package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/seatkeeper/internal/models"
)

const deviceColumns = `id, license_id, hwid, hostname, platform, app_version, created_at, last_seen_at`

// querier is the subset shared by *pgxpool.Pool and pgx.Tx, so the same repository
// code runs either on a pooled connection or inside a seat transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresDeviceRepository struct {
	db querier
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: pool}
}

func (r *PostgresDeviceRepository) Create(ctx context.Context, device *models.Device) error {
	query := `INSERT INTO devices (license_id, hwid, hostname, platform, app_version)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at, last_seen_at`

	err := r.db.QueryRow(ctx, query,
		device.LicenseID,
		device.HWID,
		device.Hostname,
		device.Platform,
		device.AppVersion,
	).Scan(&device.ID, &device.CreatedAt, &device.LastSeenAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *PostgresDeviceRepository) GetByHWID(ctx context.Context, licenseID uuid.UUID, hwid string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
	          FROM devices
	          WHERE license_id = $1 AND hwid = $2`

	device, err := scanDevice(r.db.QueryRow(ctx, query, licenseID, hwid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func (r *PostgresDeviceRepository) ListByLicenseID(ctx context.Context, licenseID uuid.UUID) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
	          FROM devices
	          WHERE license_id = $1
	          ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []*models.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

func (r *PostgresDeviceRepository) CountByLicenseID(ctx context.Context, licenseID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE license_id = $1`, licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// Touch refreshes last_seen_at and overwrites only the metadata columns the client
// actually reported. NULLIF turns an empty string into "keep the stored value".
func (r *PostgresDeviceRepository) Touch(ctx context.Context, device *models.Device, meta models.DeviceMetadata) error {
	query := `UPDATE devices
	          SET last_seen_at = NOW(),
	              hostname = COALESCE(NULLIF($1::text, ''), hostname),
	              platform = COALESCE(NULLIF($2::text, ''), platform),
	              app_version = COALESCE(NULLIF($3::text, ''), app_version)
	          WHERE id = $4
	          RETURNING ` + deviceColumns

	updated, err := scanDevice(r.db.QueryRow(ctx, query,
		meta.Hostname,
		meta.Platform,
		meta.AppVersion,
		device.ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}

	*device = *updated
	return nil
}

func (r *PostgresDeviceRepository) Delete(ctx context.Context, licenseID uuid.UUID, hwid string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM devices WHERE license_id = $1 AND hwid = $2`, licenseID, hwid)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*models.Device, error) {
	var device models.Device
	err := row.Scan(
		&device.ID,
		&device.LicenseID,
		&device.HWID,
		&device.Hostname,
		&device.Platform,
		&device.AppVersion,
		&device.CreatedAt,
		&device.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &device, nil
}
