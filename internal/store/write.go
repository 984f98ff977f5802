package store

import (
	"context"
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
)

// WriteRun inserts or updates a run header. A second write for the same ID
// replaces the outcome and leaves the other fields as first written.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, class, constructor, spec_hash, plan_hash, engine_version, ir_version, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET outcome = excluded.outcome
	`,
		run.ID,
		run.Class,
		run.Constructor,
		run.SpecHash,
		run.PlanHash,
		run.EngineVersion,
		run.IRVersion,
		run.Outcome,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// SetOutcome updates the outcome of an existing run.
func (s *Store) SetOutcome(ctx context.Context, runID, outcome string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET outcome = ? WHERE id = ?`, outcome, runID)
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set outcome: %w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// WriteEvent appends a trace event.
// Uses ON CONFLICT DO NOTHING so that re-recording a run is idempotent:
// (run_id, seq) identifies an event.
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, object, path, class, step, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		string(ev.Kind),
		ev.Object,
		ev.Path,
		ev.Class,
		string(ev.Step),
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteSpecs stores a class declaration set under its content hash and
// returns the hash. Writing the same set twice is a no-op.
func (s *Store) WriteSpecs(ctx context.Context, specs []ir.ClassSpec) (string, error) {
	hash, err := ir.SpecHash(specs)
	if err != nil {
		return "", fmt.Errorf("write specs: %w", err)
	}
	body, err := marshalSpecs(specs)
	if err != nil {
		return "", fmt.Errorf("write specs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO specs (hash, body) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, body)
	if err != nil {
		return "", fmt.Errorf("write specs: %w", err)
	}
	return hash, nil
}
