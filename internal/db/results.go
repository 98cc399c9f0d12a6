package db

import (
	"fmt"
	"time"
)

// RaceResult is one player's finish, captured the moment it is first
// recorded. Snapshotting is best-effort: a dropped write is never retried.
type RaceResult struct {
	RoomID       string
	PlayerID     string
	Color        string
	Difficulty   string
	FinishTimeMs float64
	RecordedAt   time.Time
}

func (d *DB) RecordResult(res RaceResult) error {
	_, err := d.conn.Exec(`
		INSERT INTO race_results (room_id, player_id, color, difficulty, finish_time_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, res.RoomID, res.PlayerID, res.Color, res.Difficulty, res.FinishTimeMs, res.RecordedAt)
	if err != nil {
		return fmt.Errorf("recording result: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordResults(results []RaceResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO race_results (room_id, player_id, color, difficulty, finish_time_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		if _, err := stmt.Exec(res.RoomID, res.PlayerID, res.Color, res.Difficulty, res.FinishTimeMs, res.RecordedAt); err != nil {
			return fmt.Errorf("recording result in batch: %w", err)
		}
	}

	return tx.Commit()
}

// TopResults returns the fastest finishes for a difficulty, one row per
// finisher, quickest first.
func (d *DB) TopResults(difficulty string, limit int) ([]RaceResult, error) {
	rows, err := d.conn.Query(`
		SELECT room_id, player_id, color, difficulty, finish_time_ms, recorded_at
		FROM race_results
		WHERE difficulty = $1
		ORDER BY finish_time_ms ASC
		LIMIT $2
	`, difficulty, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top results: %w", err)
	}
	defer rows.Close()

	var out []RaceResult
	for rows.Next() {
		var res RaceResult
		if err := rows.Scan(&res.RoomID, &res.PlayerID, &res.Color, &res.Difficulty, &res.FinishTimeMs, &res.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
