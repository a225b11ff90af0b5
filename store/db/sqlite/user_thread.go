package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hrygo/chatrelay/store"
)

func (d *DB) UpsertUserThread(ctx context.Context, upsert *store.UpsertUserThread) (*store.UserThread, error) {
	now := time.Now().Unix()

	stmt := `INSERT INTO user_thread (user_id, thread_id, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (user_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			updated_ts = excluded.updated_ts
		RETURNING user_id, thread_id, created_ts, updated_ts`

	result := &store.UserThread{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.ThreadID, now, now).Scan(
		&result.UserID,
		&result.ThreadID,
		&result.CreatedTs,
		&result.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert user_thread: %w", err)
	}

	return result, nil
}

func (d *DB) GetUserThread(ctx context.Context, find *store.FindUserThread) (*store.UserThread, error) {
	if find.UserID == nil {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `SELECT user_id, thread_id, created_ts, updated_ts FROM user_thread WHERE user_id = ` + placeholder(1)

	result := &store.UserThread{}
	if err := d.db.QueryRowContext(ctx, query, *find.UserID).Scan(
		&result.UserID,
		&result.ThreadID,
		&result.CreatedTs,
		&result.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user_thread: %w", err)
	}

	return result, nil
}
