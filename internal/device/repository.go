package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Upsert creates the device if unseen, otherwise merges the non-nil
	// fields into the stored record. Either way last_seen is refreshed and
	// status forced to enrolled. The merged record is returned.
	Upsert(ctx context.Context, udid string, fields Fields) (*Device, error)

	// SetStatus writes status and refreshes last_seen.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetStatus(ctx context.Context, udid string, status Status) error

	// GetByUDID retrieves a device by its UDID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByUDID(ctx context.Context, udid string) (*Device, error)

	// List retrieves all devices, most recently enrolled first.
	List(ctx context.Context) ([]Device, error)

	// CountByStatus returns the number of devices in each status.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

const selectDevice = `
	SELECT id, udid, serial_number, device_name, model, os_version,
		push_token, push_magic, unlock_token, topic,
		status, enrolled_at, last_seen
	FROM devices`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Upsert performs the insert-or-merge and the read-back in one write
// transaction, so concurrent partial updates for different field sets
// cannot overwrite each other.
func (r *SQLiteRepository) Upsert(ctx context.Context, udid string, f Fields) (*Device, error) {
	if udid == "" {
		return nil, ErrInvalidUDID
	}

	now := database.FormatTime(r.now())
	var dev *Device
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO devices (
				udid, serial_number, device_name, model, os_version,
				push_token, push_magic, unlock_token, topic,
				status, enrolled_at, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(udid) DO UPDATE SET
				serial_number = COALESCE(excluded.serial_number, devices.serial_number),
				device_name   = COALESCE(excluded.device_name, devices.device_name),
				model         = COALESCE(excluded.model, devices.model),
				os_version    = COALESCE(excluded.os_version, devices.os_version),
				push_token    = COALESCE(excluded.push_token, devices.push_token),
				push_magic    = COALESCE(excluded.push_magic, devices.push_magic),
				unlock_token  = COALESCE(excluded.unlock_token, devices.unlock_token),
				topic         = COALESCE(excluded.topic, devices.topic),
				status        = excluded.status,
				last_seen     = excluded.last_seen`,
			udid, f.SerialNumber, f.DeviceName, f.Model, f.OSVersion,
			f.PushToken, f.PushMagic, f.UnlockToken, f.Topic,
			string(StatusEnrolled), now, now,
		)
		if err != nil {
			return fmt.Errorf("upserting device: %w", err)
		}

		dev, err = scanDevice(tx.QueryRowContext(ctx, selectDevice+" WHERE udid = ?", udid))
		if err != nil {
			return fmt.Errorf("reading back device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// SetStatus writes status and refreshes last_seen.
func (r *SQLiteRepository) SetStatus(ctx context.Context, udid string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, last_seen = ? WHERE udid = ?",
		string(status), database.FormatTime(r.now()), udid,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// GetByUDID retrieves a device by its UDID.
func (r *SQLiteRepository) GetByUDID(ctx context.Context, udid string) (*Device, error) {
	dev, err := scanDevice(r.db.QueryRowContext(ctx, selectDevice+" WHERE udid = ?", udid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by udid: %w", err)
	}
	return dev, nil
}

// List retrieves all devices, most recently enrolled first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevice+" ORDER BY enrolled_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// CountByStatus returns the number of devices in each status.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM devices GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting devices: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{StatusEnrolled: 0, StatusUnenrolled: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		d                                        Device
		serial, name, model, osVersion           sql.NullString
		pushToken, pushMagic, unlockToken, topic sql.NullString
		status, enrolledAt                       string
		lastSeen                                 sql.NullString
	)

	if err := row.Scan(
		&d.ID, &d.UDID, &serial, &name, &model, &osVersion,
		&pushToken, &pushMagic, &unlockToken, &topic,
		&status, &enrolledAt, &lastSeen,
	); err != nil {
		return nil, err
	}

	d.SerialNumber = nullString(serial)
	d.DeviceName = nullString(name)
	d.Model = nullString(model)
	d.OSVersion = nullString(osVersion)
	d.PushToken = nullString(pushToken)
	d.PushMagic = nullString(pushMagic)
	d.UnlockToken = nullString(unlockToken)
	d.Topic = nullString(topic)
	d.Status = Status(status)

	var err error
	if d.EnrolledAt, err = database.ParseTime(enrolledAt); err != nil {
		return nil, err
	}
	if d.LastSeen, err = database.ParseNullableTime(lastSeen); err != nil {
		return nil, err
	}
	return &d, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
