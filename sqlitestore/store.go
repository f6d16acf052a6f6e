// Package sqlitestore provides a PersistenceAdapter backed by SQLite,
// giving a flow durable state in a single local file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// Store persists one row per flow id in a flow_state table.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type Store struct {
	db     *sql.DB
	flowID string
}

var _ api.PersistenceAdapter = (*Store)(nil)

// record is the JSON envelope stored in the context column.
type record struct {
	FlowData    map[string]any `json:"flowData"`
	CurrentStep *string        `json:"currentStep,omitempty"`
}

// New initializes the schema in the given database and returns a Store
// scoped to flowID.
func New(db *sql.DB, flowID string) (*Store, error) {
	if flowID == "" {
		return nil, errors.New("sqlitestore: flow id must not be empty")
	}
	s := &Store{db: db, flowID: flowID}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_state (
			flow_id TEXT PRIMARY KEY,
			current_step TEXT,
			context TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	)
	return err
}

func (s *Store) Load(ctx context.Context) (*api.LoadedData, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT context FROM flow_state WHERE flow_id = ?`, s.flowID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load %s: %w", s.flowID, err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode %s: %w", s.flowID, err)
	}

	loaded := &api.LoadedData{FlowData: rec.FlowData}
	if rec.CurrentStep != nil {
		id := api.StepID(*rec.CurrentStep)
		loaded.CurrentStepID = &id
	}
	return loaded, nil
}

func (s *Store) Persist(ctx context.Context, fc *api.Context, currentStepID *api.StepID) error {
	rec := record{FlowData: fc.FlowData}
	var current any
	if currentStepID != nil {
		str := string(*currentStepID)
		rec.CurrentStep = &str
		current = str
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode %s: %w", s.flowID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_state (flow_id, current_step, context, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(flow_id) DO UPDATE SET
			current_step = excluded.current_step,
			context = excluded.context,
			updated_at = excluded.updated_at`,
		s.flowID, current, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: persist %s: %w", s.flowID, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM flow_state WHERE flow_id = ?`, s.flowID,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: clear %s: %w", s.flowID, err)
	}
	return nil
}
