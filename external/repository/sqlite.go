package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores timestamps as unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes serialized and pragmas in effect.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

func NewSQLiteRepository(db *sql.DB) repository.Repository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRoom(ctx context.Context, roomID string, joinedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, joined_at, recording) VALUES (?, ?, 0)
		 ON CONFLICT (id) DO NOTHING`,
		roomID, joinedAt.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepository) GetRoom(ctx context.Context, roomID string) (*repository.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, joined_at, recording FROM rooms WHERE id = ?`,
		roomID)
	room, err := scanSQLiteRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

func (r *SQLiteRepository) SetRoomRecording(ctx context.Context, roomID string, recording bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET recording = ? WHERE id = ?`,
		recording, roomID)
	return err
}

func (r *SQLiteRepository) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID)
	return err
}

func (r *SQLiteRepository) ListUnconfirmedRooms(ctx context.Context, joinedBefore time.Time) ([]repository.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, joined_at, recording FROM rooms
		 WHERE recording = 0 AND joined_at < ? ORDER BY joined_at ASC`,
		joinedBefore.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Room
	for rows.Next() {
		room, err := scanSQLiteRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *room)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoom(row rowScanner) (*repository.Room, error) {
	var (
		room     repository.Room
		joinedAt int64
	)
	if err := row.Scan(&room.ID, &joinedAt, &room.Recording); err != nil {
		return nil, err
	}
	room.JoinedAt = time.UnixMilli(joinedAt).UTC()
	return &room, nil
}

const sqliteMessageColumns = `seq, room_id, text, sender_id, server_time, category, spans, created_at`

func (r *SQLiteRepository) InsertMessage(ctx context.Context, input repository.InsertMessageInput) (*repository.Message, error) {
	spans, err := encodeSpans(input.Spans)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (room_id, text, sender_id, server_time, category, spans, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+sqliteMessageColumns,
		input.RoomID, input.Text, input.SenderID, input.ServerTime.UnixMilli(), input.Category.String(), spans, time.Now().UnixMilli())
	return scanSQLiteMessage(row)
}

func (r *SQLiteRepository) GetLastMessage(ctx context.Context, roomID string) (*repository.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteMessageColumns+` FROM messages
		 WHERE room_id = ? ORDER BY seq DESC LIMIT 1`,
		roomID)
	msg, err := scanSQLiteMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *SQLiteRepository) UpdateLastMessageCategory(ctx context.Context, roomID string, c category.Category) (*repository.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE messages SET category = ?
		 WHERE seq = (SELECT max(seq) FROM messages WHERE room_id = ?)
		 RETURNING `+sqliteMessageColumns,
		c.String(), roomID)
	msg, err := scanSQLiteMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoMessage
	}
	return msg, err
}

func scanSQLiteMessage(row rowScanner) (*repository.Message, error) {
	var (
		msg        repository.Message
		serverTime int64
		createdAt  int64
		label      string
		spans      string
	)
	if err := row.Scan(&msg.Seq, &msg.RoomID, &msg.Text, &msg.SenderID, &serverTime, &label, &spans, &createdAt); err != nil {
		return nil, err
	}
	msg.ServerTime = time.UnixMilli(serverTime).UTC()
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := decodeMessageFields(&msg, label, []byte(spans)); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *SQLiteRepository) IsHandled(ctx context.Context, eventID string) (bool, error) {
	var handled bool
	err := r.db.QueryRowContext(ctx,
		`SELECT handled FROM action_ledger WHERE event_id = ?`,
		eventID).Scan(&handled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return handled, nil
}

func (r *SQLiteRepository) MarkHandled(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_ledger (event_id, handled, handled_at) VALUES (?, 1, ?)
		 ON CONFLICT (event_id) DO UPDATE SET handled = 1`,
		eventID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark %s handled: %w", eventID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`,
		key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SaveSyncState(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}
