package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ctorder/internal/ir"
)

// ErrRunNotFound is returned when a run ID has no header row.
var ErrRunNotFound = errors.New("run not found")

// ErrSpecsNotFound is returned when no declaration set has the given hash.
var ErrSpecsNotFound = errors.New("specs not found")

// ReadEvents returns the trace of one run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, object, path, class, step, detail
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev         ir.Event
			kind, step string
		)
		if err := rows.Scan(&ev.RunID, &ev.Seq, &kind, &ev.Object, &ev.Path, &ev.Class, &step, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ir.EventKind(kind)
		ev.Step = ir.StepKind(step)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadOutput returns the concatenated output text of a run, in seq order.
func (s *Store) ReadOutput(ctx context.Context, runID string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail FROM events
		WHERE run_id = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, string(ir.EventOutput))
	if err != nil {
		return "", fmt.Errorf("query output: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return "", fmt.Errorf("scan output: %w", err)
		}
		b.WriteString(detail)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate output: %w", err)
	}
	return b.String(), nil
}

// ReadRun returns one run header.
func (s *Store) ReadRun(ctx context.Context, runID string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, class, constructor, spec_hash, plan_hash, engine_version, ir_version, outcome
		FROM runs WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns run headers ordered by ID. Run IDs are UUIDv7, so this
// is creation order. An empty class lists every run.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, class string) ([]ir.Run, error) {
	query := `
		SELECT id, class, constructor, spec_hash, plan_hash, engine_version, ir_version, outcome
		FROM runs`
	var args []any
	if class != "" {
		query += ` WHERE class = ?`
		args = append(args, class)
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest event seq in the store, or 0 when empty.
// A clock resumed from it keeps seq values unique across invocations.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadSpecs returns the declaration set stored under hash.
func (s *Store) ReadSpecs(ctx context.Context, hash string) ([]ir.ClassSpec, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM specs WHERE hash = ?`, hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSpecsNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("read specs: %w", err)
	}
	return unmarshalSpecs(body)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var run ir.Run
	err := row.Scan(
		&run.ID,
		&run.Class,
		&run.Constructor,
		&run.SpecHash,
		&run.PlanHash,
		&run.EngineVersion,
		&run.IRVersion,
		&run.Outcome,
	)
	return run, err
}
