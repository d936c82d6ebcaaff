package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one row of the run ledger.
type Run struct {
	RunID           string     `json:"run_id"`
	Mode            string     `json:"mode"` // "live" or "sim"
	ServerAddress   string     `json:"server_address"`
	UDPPort         uint16     `json:"udp_port"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	FinalState      string     `json:"final_state,omitempty"`
	Connected       bool       `json:"connected"`
	Streaming       bool       `json:"streaming"`
	Ticks           uint64     `json:"ticks"`
	Frames          uint64     `json:"frames"`
	Bodies          uint64     `json:"bodies"`
	DecodeSkips     uint64     `json:"decode_skips"`
	ReceiveFailures uint64     `json:"receive_failures"`
}

// RunStart describes a run as it begins.
type RunStart struct {
	Mode          string
	ServerAddress string
	UDPPort       uint16
	StartedAt     time.Time
}

// RunSummary is what is known about a run when it ends.
type RunSummary struct {
	EndedAt         time.Time
	FinalState      string
	Connected       bool
	Streaming       bool
	UDPPort         uint16
	Ticks           uint64
	Frames          uint64
	Bodies          uint64
	DecodeSkips     uint64
	ReceiveFailures uint64
}

// StartRun inserts a new run and returns its generated ID.
func (db *DB) StartRun(start RunStart) (string, error) {
	if start.Mode == "" {
		start.Mode = "live"
	}
	if start.StartedAt.IsZero() {
		start.StartedAt = time.Now()
	}
	runID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO runs (run_id, mode, server_address, udp_port, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, start.Mode, start.ServerAddress, start.UDPPort, start.StartedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// FinishRun records the final state of runID.
func (db *DB) FinishRun(runID string, s RunSummary) error {
	if s.EndedAt.IsZero() {
		s.EndedAt = time.Now()
	}
	res, err := db.Exec(`
		UPDATE runs SET
			ended_at = ?, final_state = ?, connected = ?, streaming = ?, udp_port = ?,
			ticks = ?, frames = ?, bodies = ?, decode_skips = ?, receive_failures = ?
		WHERE run_id = ?`,
		s.EndedAt.UnixMilli(), s.FinalState, s.Connected, s.Streaming, s.UDPPort,
		int64(s.Ticks), int64(s.Frames), int64(s.Bodies), int64(s.DecodeSkips), int64(s.ReceiveFailures),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. limit <= 0 means 20.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT run_id, mode, server_address, udp_port, started_at, ended_at,
			COALESCE(final_state, ''), connected, streaming,
			ticks, frames, bodies, decode_skips, receive_failures
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                         Run
			startedAt                 int64
			endedAt                   sql.NullInt64
			ticks, frames, bodies     int64
			decodeSkips, recvFailures int64
		)
		if err := rows.Scan(
			&r.RunID, &r.Mode, &r.ServerAddress, &r.UDPPort, &startedAt, &endedAt,
			&r.FinalState, &r.Connected, &r.Streaming,
			&ticks, &frames, &bodies, &decodeSkips, &recvFailures,
		); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(startedAt).UTC()
		if endedAt.Valid {
			t := time.UnixMilli(endedAt.Int64).UTC()
			r.EndedAt = &t
		}
		r.Ticks = uint64(ticks)
		r.Frames = uint64(frames)
		r.Bodies = uint64(bodies)
		r.DecodeSkips = uint64(decodeSkips)
		r.ReceiveFailures = uint64(recvFailures)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
