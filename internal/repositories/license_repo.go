package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/seatkeeper/internal/models"
)

const licenseColumns = `id, key, status, plan, max_devices, max_version, expires_at,
	         payload, notes, created_at, updated_at`

type PostgresLicenseRepository struct {
	db querier
}

func NewPostgresLicenseRepository(pool *pgxpool.Pool) *PostgresLicenseRepository {
	return &PostgresLicenseRepository{db: pool}
}

func (r *PostgresLicenseRepository) Create(ctx context.Context, license *models.License) error {
	query := `INSERT INTO licenses (key, status, plan, max_devices, max_version, expires_at, payload, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		license.Key,
		license.Status,
		license.Plan,
		license.MaxDevices,
		license.MaxVersion,
		license.ExpiresAt,
		license.Payload,
		license.Notes,
	).Scan(&license.ID, &license.CreatedAt, &license.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create license: %w", err)
	}
	return nil
}

func (r *PostgresLicenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1`

	license, err := scanLicense(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return license, nil
}

func (r *PostgresLicenseRepository) GetByKey(ctx context.Context, key string) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE key = $1`

	license, err := scanLicense(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by key: %w", err)
	}
	return license, nil
}

func (r *PostgresLicenseRepository) List(ctx context.Context, offset, limit int) ([]*models.License, error) {
	query := `SELECT ` + licenseColumns + `
	          FROM licenses
	          ORDER BY created_at ASC, id ASC
	          OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*models.License, 0, limit)
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, license)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, nil
}

// UpdateFields writes only the columns present in update and bumps updated_at,
// all in one statement so concurrent patches to different fields do not clobber
// each other.
func (r *PostgresLicenseRepository) UpdateFields(ctx context.Context, id uuid.UUID, update models.LicenseUpdate) (*models.License, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Key != nil {
		set("key", *update.Key)
	}
	if update.Status != nil {
		set("status", *update.Status)
	}
	if update.Plan != nil {
		set("plan", *update.Plan)
	}
	if update.MaxDevices != nil {
		set("max_devices", *update.MaxDevices)
	}
	if update.MaxVersion != nil {
		set("max_version", *update.MaxVersion)
	}
	if update.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if update.ExpiresAt != nil {
		set("expires_at", *update.ExpiresAt)
	}
	if update.Payload != nil {
		set("payload", *update.Payload)
	}
	if update.Notes != nil {
		set("notes", *update.Notes)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE licenses SET %s WHERE id = $%d RETURNING `+licenseColumns,
		strings.Join(sets, ", "), len(args))

	license, err := scanLicense(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}
	return license, nil
}

// Delete removes the license; devices go with it through ON DELETE CASCADE.
func (r *PostgresLicenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete license: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLicense(row pgx.Row) (*models.License, error) {
	var license models.License
	err := row.Scan(
		&license.ID,
		&license.Key,
		&license.Status,
		&license.Plan,
		&license.MaxDevices,
		&license.MaxVersion,
		&license.ExpiresAt,
		&license.Payload,
		&license.Notes,
		&license.CreatedAt,
		&license.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &license, nil
}
