package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 20

	// fixed width so created_at sorts as text
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

var (
	// ErrRunNotFound is returned when no run matches the requested ID.
	ErrRunNotFound = errors.New("run not found")

	insertRun = `INSERT INTO run (
			id, created_at, source, rows, synthesized, label_counts, strategy,
			accuracy, reduced_accuracy, version, digest, artifact
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRuns = `SELECT
			id, created_at, source, rows, synthesized, label_counts, strategy,
			accuracy, reduced_accuracy, version, digest
		FROM run
		ORDER BY created_at DESC
		LIMIT ?`

	selectRun = `SELECT
			id, created_at, source, rows, synthesized, label_counts, strategy,
			accuracy, reduced_accuracy, version, digest, artifact
		FROM run
		WHERE id = ?`
)

// Run is a recorded training run. Artifact holds the exact JSON document
// produced by the run and is omitted from listings.
type Run struct {
	ID              string          `json:"id" yaml:"id"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
	Source          string          `json:"source" yaml:"source"`
	Rows            int             `json:"rows" yaml:"rows"`
	Synthesized     bool            `json:"synthesized" yaml:"synthesized"`
	LabelCounts     map[string]int  `json:"label_counts" yaml:"label_counts"`
	Strategy        string          `json:"strategy" yaml:"strategy"`
	Accuracy        float64         `json:"accuracy" yaml:"accuracy"`
	ReducedAccuracy float64         `json:"reduced_accuracy" yaml:"reduced_accuracy"`
	Version         string          `json:"version" yaml:"version"`
	Digest          string          `json:"digest" yaml:"digest"`
	Artifact        json.RawMessage `json:"artifact,omitempty" yaml:"-"`
}

// SaveRun inserts r, assigning an ID and creation time when they are unset.
func SaveRun(db *sql.DB, r *Run) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil {
		return errors.New("run required")
	}
	if r.Digest == "" || len(r.Artifact) == 0 {
		return fmt.Errorf("run digest and artifact are required")
	}
	if !json.Valid(r.Artifact) {
		return fmt.Errorf("run artifact is not valid JSON")
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	counts, err := json.Marshal(r.LabelCounts)
	if err != nil {
		return fmt.Errorf("failed to encode label counts: %w", err)
	}

	stmt, err := db.Prepare(insertRun)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(r.ID, r.CreatedAt.UTC().Format(timeFormat), r.Source, r.Rows,
		r.Synthesized, string(counts), r.Strategy, r.Accuracy, r.ReducedAccuracy,
		r.Version, r.Digest, string(r.Artifact)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// ListRuns returns up to limit runs, newest first, without artifacts.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := db.Query(selectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return list, nil
}

// GetRun returns the run with id, including its artifact.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}

	r, err := scanRun(db.QueryRow(selectRun, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, withArtifact bool) (*Run, error) {
	var (
		r       Run
		created string
		counts  string
		art     string
	)

	dest := []any{&r.ID, &created, &r.Source, &r.Rows, &r.Synthesized, &counts,
		&r.Strategy, &r.Accuracy, &r.ReducedAccuracy, &r.Version, &r.Digest}
	if withArtifact {
		dest = append(dest, &art)
	}

	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run time %q: %w", created, err)
	}
	r.CreatedAt = t

	if err := json.Unmarshal([]byte(counts), &r.LabelCounts); err != nil {
		return nil, fmt.Errorf("failed to decode label counts: %w", err)
	}
	if withArtifact {
		r.Artifact = json.RawMessage(art)
	}

	return &r, nil
}
