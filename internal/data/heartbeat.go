package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/anchor-deposits-processor/db"
)

// Heartbeat is the singleton lock row that guarantees only one processor instance runs at
// a time against a given database.
type Heartbeat struct {
	Name          string    `db:"name"`
	LastHeartbeat time.Time `db:"last_heartbeat"`
}

type HeartbeatModel struct {
	DBConnectionPool db.DBConnectionPool
}

func NewHeartbeatModel(dbConnectionPool db.DBConnectionPool) *HeartbeatModel {
	return &HeartbeatModel{DBConnectionPool: dbConnectionPool}
}

// AcquireOrTakeOver attempts to claim the heartbeat row with the given name. It succeeds
// when no row exists, or when the existing row went stale (older than staleAfter),
// meaning the previous holder died without releasing it. The read-modify-write runs at
// SERIALIZABLE isolation so two racing instances cannot both claim the lock.
func (h *HeartbeatModel) AcquireOrTakeOver(ctx context.Context, name string, staleAfter time.Duration) (bool, error) {
	txOpts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	acquired, err := db.RunInTransactionWithResult(ctx, h.DBConnectionPool, txOpts, func(dbTx db.DBTransaction) (bool, error) {
		// Staleness is computed against the database clock that wrote last_heartbeat, so
		// clock skew between instances cannot shift the takeover threshold.
		var heartbeat struct {
			Name  string `db:"name"`
			Stale bool   `db:"stale"`
		}
		query := `
			SELECT
				name,
				EXTRACT(EPOCH FROM (NOW() - last_heartbeat)) > $2 AS stale
			FROM
				processor_heartbeats
			WHERE
				name = $1
			FOR UPDATE
		`
		err := dbTx.GetContext(ctx, &heartbeat, query, name, staleAfter.Seconds())
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return false, fmt.Errorf("querying heartbeat %q: %w", name, err)
			}

			insertQuery := `INSERT INTO processor_heartbeats (name, last_heartbeat) VALUES ($1, NOW())`
			if _, err = dbTx.ExecContext(ctx, insertQuery, name); err != nil {
				return false, fmt.Errorf("inserting heartbeat %q: %w", name, err)
			}
			return true, nil
		}

		if !heartbeat.Stale {
			// another instance is alive
			return false, nil
		}

		updateQuery := `UPDATE processor_heartbeats SET last_heartbeat = NOW() WHERE name = $1`
		if _, err = dbTx.ExecContext(ctx, updateQuery, name); err != nil {
			return false, fmt.Errorf("taking over stale heartbeat %q: %w", name, err)
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("acquiring heartbeat %q: %w", name, err)
	}

	return acquired, nil
}

// Refresh bumps the heartbeat timestamp of the current holder.
func (h *HeartbeatModel) Refresh(ctx context.Context, name string) error {
	query := `UPDATE processor_heartbeats SET last_heartbeat = NOW() WHERE name = $1`
	result, err := h.DBConnectionPool.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("refreshing heartbeat %q: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected for heartbeat %q: %w", name, err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// Release drops the heartbeat row so the next instance can start without waiting for the
// stale threshold.
func (h *HeartbeatModel) Release(ctx context.Context, name string) error {
	query := `DELETE FROM processor_heartbeats WHERE name = $1`
	if _, err := h.DBConnectionPool.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("releasing heartbeat %q: %w", name, err)
	}
	return nil
}

// Get returns the heartbeat row with the given name.
func (h *HeartbeatModel) Get(ctx context.Context, name string) (*Heartbeat, error) {
	var heartbeat Heartbeat
	query := `SELECT name, last_heartbeat FROM processor_heartbeats WHERE name = $1`
	err := h.DBConnectionPool.GetContext(ctx, &heartbeat, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying heartbeat %q: %w", name, err)
	}
	return &heartbeat, nil
}
