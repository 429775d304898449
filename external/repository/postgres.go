package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateRoom(ctx context.Context, roomID string, joinedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO rooms (id, joined_at, recording) VALUES ($1, $2, FALSE)
		 ON CONFLICT (id) DO NOTHING`,
		roomID, joinedAt.Truncate(time.Millisecond))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) GetRoom(ctx context.Context, roomID string) (*repository.Room, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, joined_at, recording FROM rooms WHERE id = $1`,
		roomID)
	var room repository.Room
	if err := row.Scan(&room.ID, &room.JoinedAt, &room.Recording); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *PostgresRepository) SetRoomRecording(ctx context.Context, roomID string, recording bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE rooms SET recording = $2 WHERE id = $1`,
		roomID, recording)
	return err
}

func (r *PostgresRepository) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (r *PostgresRepository) ListUnconfirmedRooms(ctx context.Context, joinedBefore time.Time) ([]repository.Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, joined_at, recording FROM rooms
		 WHERE recording = FALSE AND joined_at < $1 ORDER BY joined_at ASC`,
		joinedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Room
	for rows.Next() {
		var room repository.Room
		if err := rows.Scan(&room.ID, &room.JoinedAt, &room.Recording); err != nil {
			return nil, err
		}
		list = append(list, room)
	}
	return list, rows.Err()
}

const postgresMessageColumns = `seq, room_id, text, sender_id, server_time, category, spans, created_at`

func (r *PostgresRepository) InsertMessage(ctx context.Context, input repository.InsertMessageInput) (*repository.Message, error) {
	spans, err := encodeSpans(input.Spans)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO messages (room_id, text, sender_id, server_time, category, spans)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		 RETURNING `+postgresMessageColumns,
		input.RoomID, input.Text, input.SenderID, input.ServerTime, input.Category.String(), spans)
	return scanPostgresMessage(row)
}

func (r *PostgresRepository) GetLastMessage(ctx context.Context, roomID string) (*repository.Message, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+postgresMessageColumns+` FROM messages
		 WHERE room_id = $1 ORDER BY seq DESC LIMIT 1`,
		roomID)
	msg, err := scanPostgresMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *PostgresRepository) UpdateLastMessageCategory(ctx context.Context, roomID string, c category.Category) (*repository.Message, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE messages SET category = $2
		 WHERE seq = (SELECT max(seq) FROM messages WHERE room_id = $1)
		 RETURNING `+postgresMessageColumns,
		roomID, c.String())
	msg, err := scanPostgresMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNoMessage
	}
	return msg, err
}

func scanPostgresMessage(row pgx.Row) (*repository.Message, error) {
	var (
		msg   repository.Message
		label string
		spans []byte
	)
	if err := row.Scan(&msg.Seq, &msg.RoomID, &msg.Text, &msg.SenderID, &msg.ServerTime, &label, &spans, &msg.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeMessageFields(&msg, label, spans); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *PostgresRepository) IsHandled(ctx context.Context, eventID string) (bool, error) {
	var handled bool
	err := r.pool.QueryRow(ctx,
		`SELECT handled FROM action_ledger WHERE event_id = $1`,
		eventID).Scan(&handled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return handled, nil
}

func (r *PostgresRepository) MarkHandled(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO action_ledger (event_id, handled, handled_at) VALUES ($1, TRUE, NOW())
		 ON CONFLICT (event_id) DO UPDATE SET handled = TRUE`,
		eventID)
	if err != nil {
		return fmt.Errorf("mark %s handled: %w", eventID, err)
	}
	return nil
}

func (r *PostgresRepository) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM sync_state WHERE key = $1`,
		key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (r *PostgresRepository) SaveSyncState(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
