package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
)

// Repository defines the interface for command persistence operations.
type Repository interface {
	// Create inserts a pending command.
	// Returns ErrUnknownDevice if the owning device does not exist.
	Create(ctx context.Context, cmd *Command) error

	// NextPending returns the oldest pending command for a device.
	// Returns ErrCommandNotFound if none is pending.
	NextPending(ctx context.Context, udid string) (*Command, error)

	// DispatchNext atomically marks the oldest pending command as sent and
	// returns it. Returns ErrNoPendingCommand if none is pending.
	DispatchNext(ctx context.Context, udid string, sentAt time.Time) (*Command, error)

	// RecordResponse stores a device response against a command owned by
	// udid. It reports false, without error, when the UUID is unknown,
	// belongs to another device, has not been sent yet or already has a
	// final status.
	RecordResponse(ctx context.Context, udid, uuid string, status Status, result string, at time.Time) (bool, error)

	// GetByUUID retrieves a command by UUID.
	// Returns ErrCommandNotFound if it does not exist.
	GetByUUID(ctx context.Context, uuid string) (*Command, error)

	// ListForDevice returns a device's commands, newest first.
	ListForDevice(ctx context.Context, udid string) ([]Command, error)

	// CountByStatus returns the number of commands in each status.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

const commandColumns = `id, command_uuid, device_udid, command_type, payload,
	status, result, created_at, sent_at, responded_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a pending command. The device existence check and the
// insert share one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, cmd *Command) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM devices WHERE udid = ?", cmd.DeviceUDID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.DeviceUDID)
		}
		if err != nil {
			return fmt.Errorf("checking device: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO commands (command_uuid, device_udid, command_type, payload, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cmd.UUID, cmd.DeviceUDID, string(cmd.Type), cmd.Payload,
			string(cmd.Status), database.FormatTime(cmd.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting command: %w", err)
		}

		cmd.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading command id: %w", err)
		}
		return nil
	})
}

// NextPending returns the oldest pending command for a device. Equal
// created_at values fall back to insertion order.
func (r *SQLiteRepository) NextPending(ctx context.Context, udid string) (*Command, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+commandColumns+`
		FROM commands
		WHERE device_udid = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, udid)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying next pending command: %w", err)
	}
	return cmd, nil
}

// DispatchNext selects and flips the oldest pending command in a single
// UPDATE. The status guard in the WHERE clause means a row can only be
// claimed once, even if two callers select the same id.
func (r *SQLiteRepository) DispatchNext(ctx context.Context, udid string, sentAt time.Time) (*Command, error) {
	var cmd *Command
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE commands
			SET status = 'sent', sent_at = ?
			WHERE id = (
				SELECT id FROM commands
				WHERE device_udid = ? AND status = 'pending'
				ORDER BY created_at ASC, id ASC
				LIMIT 1
			) AND status = 'pending'
			RETURNING `+commandColumns,
			database.FormatTime(sentAt), udid,
		)

		var err error
		cmd, err = scanCommand(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPendingCommand
		}
		if err != nil {
			return fmt.Errorf("dispatching command: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// RecordResponse stores a device response against a command. Only a
// sent (or NotNow) command of the reporting device is updated, so status
// only ever moves pending -> sent -> terminal.
func (r *SQLiteRepository) RecordResponse(ctx context.Context, udid, uuid string, status Status, result string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE commands
		SET status = ?, result = ?, responded_at = ?
		WHERE command_uuid = ?
			AND device_udid = ?
			AND status NOT IN ('pending', 'acknowledged', 'error', 'format_error')`,
		string(status), result, database.FormatTime(at), uuid, udid,
	)
	if err != nil {
		return false, fmt.Errorf("recording command response: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetByUUID retrieves a command by UUID.
func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*Command, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+commandColumns+" FROM commands WHERE command_uuid = ?", uuid)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command by uuid: %w", err)
	}
	return cmd, nil
}

// ListForDevice returns a device's commands, newest first.
func (r *SQLiteRepository) ListForDevice(ctx context.Context, udid string) ([]Command, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commandColumns+`
		FROM commands
		WHERE device_udid = ?
		ORDER BY created_at DESC, id DESC`, udid)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return commands, nil
}

// CountByStatus returns the number of commands in each status.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM commands GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting commands: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
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

func scanCommand(row rowScanner) (*Command, error) {
	var (
		c                           Command
		kind, status, createdAt     string
		result, sentAt, respondedAt sql.NullString
	)

	if err := row.Scan(
		&c.ID, &c.UUID, &c.DeviceUDID, &kind, &c.Payload,
		&status, &result, &createdAt, &sentAt, &respondedAt,
	); err != nil {
		return nil, err
	}

	c.Type = Kind(kind)
	c.Status = Status(status)
	if result.Valid {
		s := result.String
		c.Result = &s
	}

	var err error
	if c.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if c.SentAt, err = database.ParseNullableTime(sentAt); err != nil {
		return nil, err
	}
	if c.RespondedAt, err = database.ParseNullableTime(respondedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
