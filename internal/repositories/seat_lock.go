package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/seatkeeper/internal/models"
)

// PostgresSeatLocker takes a row lock on the license for the duration of a transaction.
// Every admission for the same license queues on that row, so the count read and the
// insert made by fn cannot interleave with another admission.
type PostgresSeatLocker struct {
	pool *pgxpool.Pool
}

func NewPostgresSeatLocker(pool *pgxpool.Pool) *PostgresSeatLocker {
	return &PostgresSeatLocker{pool: pool}
}

func (l *PostgresSeatLocker) WithinLicenseLock(ctx context.Context, licenseID uuid.UUID, fn func(license *models.License, devices DeviceRepository) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin seat transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1 FOR UPDATE`
	license, err := scanLicense(tx.QueryRow(ctx, query, licenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock license: %w", err)
	}

	if err := fn(license, &PostgresDeviceRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seat transaction: %w", err)
	}
	return nil
}

func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Licenses: NewPostgresLicenseRepository(pool),
		Devices:  NewPostgresDeviceRepository(pool),
		Seats:    NewPostgresSeatLocker(pool),
	}
}
