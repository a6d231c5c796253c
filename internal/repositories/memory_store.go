package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/seatkeeper/internal/models"
)

// memoryDB holds the rows shared by the in-memory repositories. mu guards the maps;
// seatLocks holds one mutex per license for WithinLicenseLock.
type memoryDB struct {
	mu        sync.RWMutex
	licenses  map[uuid.UUID]*models.License
	keys      map[string]uuid.UUID
	devices   map[uuid.UUID]map[string]*models.Device
	seatLocks map[uuid.UUID]*sync.Mutex
	now       func() time.Time
}

// NewMemoryStore returns a Store that keeps everything in process memory.
// It honours the same contract as the Postgres store, including cascade delete
// and per-license admission locking.
func NewMemoryStore() *Store {
	db := &memoryDB{
		licenses:  map[uuid.UUID]*models.License{},
		keys:      map[string]uuid.UUID{},
		devices:   map[uuid.UUID]map[string]*models.Device{},
		seatLocks: map[uuid.UUID]*sync.Mutex{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	return &Store{
		Licenses: &MemoryLicenseRepository{db: db},
		Devices:  &MemoryDeviceRepository{db: db},
		Seats:    &MemorySeatLocker{db: db},
	}
}

type MemoryLicenseRepository struct {
	db *memoryDB
}

func (r *MemoryLicenseRepository) Create(_ context.Context, license *models.License) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.keys[license.Key]; ok {
		return ErrDuplicate
	}

	now := r.db.now()
	license.ID = uuid.New()
	license.CreatedAt = now
	license.UpdatedAt = now

	row := *license
	r.db.licenses[row.ID] = &row
	r.db.keys[row.Key] = row.ID
	r.db.devices[row.ID] = map[string]*models.Device{}
	r.db.seatLocks[row.ID] = &sync.Mutex{}
	return nil
}

func (r *MemoryLicenseRepository) GetByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row, ok := r.db.licenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	license := *row
	return &license, nil
}

func (r *MemoryLicenseRepository) GetByKey(_ context.Context, key string) (*models.License, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.keys[key]
	if !ok {
		return nil, ErrNotFound
	}
	license := *r.db.licenses[id]
	return &license, nil
}

func (r *MemoryLicenseRepository) List(_ context.Context, offset, limit int) ([]*models.License, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := make([]*models.License, 0, len(r.db.licenses))
	for _, row := range r.db.licenses {
		license := *row
		all = append(all, &license)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*models.License{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryLicenseRepository) UpdateFields(_ context.Context, id uuid.UUID, update models.LicenseUpdate) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	row, ok := r.db.licenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Key != nil && *update.Key != row.Key {
		if _, taken := r.db.keys[*update.Key]; taken {
			return nil, ErrDuplicate
		}
	}

	oldKey := row.Key
	update.Apply(row)
	row.UpdatedAt = r.db.now()
	if row.Key != oldKey {
		delete(r.db.keys, oldKey)
		r.db.keys[row.Key] = row.ID
	}

	license := *row
	return &license, nil
}

func (r *MemoryLicenseRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	row, ok := r.db.licenses[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.db.keys, row.Key)
	delete(r.db.licenses, id)
	delete(r.db.devices, id)
	// A WithinLicenseLock call already holding this mutex finds the license gone on its re-read.
	delete(r.db.seatLocks, id)
	return nil
}

type MemoryDeviceRepository struct {
	db *memoryDB
}

func (r *MemoryDeviceRepository) Create(_ context.Context, device *models.Device) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	set, ok := r.db.devices[device.LicenseID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := set[device.HWID]; exists {
		return ErrDuplicate
	}

	now := r.db.now()
	device.ID = uuid.New()
	device.CreatedAt = now
	device.LastSeenAt = now

	row := *device
	set[row.HWID] = &row
	return nil
}

func (r *MemoryDeviceRepository) GetByHWID(_ context.Context, licenseID uuid.UUID, hwid string) (*models.Device, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row, ok := r.db.devices[licenseID][hwid]
	if !ok {
		return nil, ErrNotFound
	}
	device := *row
	return &device, nil
}

func (r *MemoryDeviceRepository) ListByLicenseID(_ context.Context, licenseID uuid.UUID) ([]*models.Device, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	devices := make([]*models.Device, 0, len(r.db.devices[licenseID]))
	for _, row := range r.db.devices[licenseID] {
		device := *row
		devices = append(devices, &device)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].HWID < devices[j].HWID
		}
		return devices[i].CreatedAt.Before(devices[j].CreatedAt)
	})
	return devices, nil
}

func (r *MemoryDeviceRepository) CountByLicenseID(_ context.Context, licenseID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.devices[licenseID]), nil
}

func (r *MemoryDeviceRepository) Touch(_ context.Context, device *models.Device, meta models.DeviceMetadata) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	row, ok := r.db.devices[device.LicenseID][device.HWID]
	if !ok || row.ID != device.ID {
		return ErrNotFound
	}
	meta.ApplyTo(row)
	row.LastSeenAt = r.db.now()

	*device = *row
	return nil
}

func (r *MemoryDeviceRepository) Delete(_ context.Context, licenseID uuid.UUID, hwid string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	set := r.db.devices[licenseID]
	if _, ok := set[hwid]; !ok {
		return ErrNotFound
	}
	delete(set, hwid)
	return nil
}

type MemorySeatLocker struct {
	db *memoryDB
}

func (l *MemorySeatLocker) WithinLicenseLock(ctx context.Context, licenseID uuid.UUID, fn func(license *models.License, devices DeviceRepository) error) error {
	l.db.mu.RLock()
	lock, ok := l.db.seatLocks[licenseID]
	l.db.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the license may have changed or vanished while we waited.
	l.db.mu.RLock()
	row, ok := l.db.licenses[licenseID]
	var license models.License
	if ok {
		license = *row
	}
	l.db.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&license, &MemoryDeviceRepository{db: l.db})
}
