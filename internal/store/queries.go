package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/signalsfoundry/constellation-allocator/core"
)

// SaveRun inserts rec and its assignments in one transaction and sets
// rec.ID.
func (s *Store) SaveRun(rec *RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs
		(run_id, dataset, step, allocator, mode, allocated, total, nodes_visited, pruned, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := tx.Exec(query,
		rec.RunID,
		rec.Dataset,
		rec.Step,
		rec.Allocator,
		rec.Mode,
		rec.Allocated,
		rec.Total,
		rec.NodesVisited,
		rec.Pruned,
		int64(rec.Duration),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapErr("failed to insert run", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}

	for _, a := range rec.Assignments {
		if _, err := tx.Exec(
			`INSERT INTO assignments (run, application_id, satellite_id) VALUES (?, ?, ?)`,
			id, a.ApplicationID, a.SatelliteID,
		); err != nil {
			return wrapErr(fmt.Sprintf("failed to insert assignment %s", a.ApplicationID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	rec.ID = id
	return nil
}

// ListRuns returns recorded runs, newest first. An empty dataset lists all
// datasets; limit <= 0 means no limit. Assignments are not loaded.
func (s *Store) ListRuns(dataset string, limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, run_id, dataset, step, allocator, mode, allocated, total, nodes_visited, pruned, duration_ns, created_at
		FROM runs
		WHERE (? = '' OR dataset = ?)
		ORDER BY id DESC
	`
	args := []any{dataset, dataset}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run with its assignments.
func (s *Store) GetRun(id int64) (*RunRecord, error) {
	query := `
		SELECT id, run_id, dataset, step, allocator, mode, allocated, total, nodes_visited, pruned, duration_ns, created_at
		FROM runs
		WHERE id = ?
	`
	rec, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %d", id), err)
	}

	rec.Assignments, err = s.GetAssignments(id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAssignments returns the assignments recorded for a run, ordered by
// application ID.
func (s *Store) GetAssignments(id int64) ([]core.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT application_id, satellite_id FROM assignments WHERE run = ? ORDER BY application_id`, id)
	if err != nil {
		return nil, wrapErr("failed to get assignments", err)
	}
	defer rows.Close()

	var out []core.Assignment
	for rows.Next() {
		var a core.Assignment
		if err := rows.Scan(&a.ApplicationID, &a.SatelliteID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var dataset, mode sql.NullString
	var durationNS int64
	var createdAt string

	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&dataset,
		&rec.Step,
		&rec.Allocator,
		&mode,
		&rec.Allocated,
		&rec.Total,
		&rec.NodesVisited,
		&rec.Pruned,
		&durationNS,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Dataset = dataset.String
	rec.Mode = mode.String
	rec.Duration = time.Duration(durationNS)

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %d: %w", rec.ID, err)
	}
	return &rec, nil
}
