package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crucible-dev/crucible/internal/retry"
)

// CycleRecord is a persisted build-validate cycle.
type CycleRecord struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	Status       string     `json:"status"`
	MaxAttempts  int        `json:"max_attempts"`
	Attempts     int        `json:"attempts"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// AttemptRecord is one persisted attempt within a cycle.
type AttemptRecord struct {
	ID         string    `json:"id"`
	CycleID    string    `json:"cycle_id"`
	Number     int       `json:"number"`
	Verdict    string    `json:"verdict"`
	Action     string    `json:"action"`
	Issues     []string  `json:"issues,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CreateCycle inserts a new in-progress cycle and returns its record.
func (db *DB) CreateCycle(taskID string, maxAttempts int) (*CycleRecord, error) {
	record := &CycleRecord{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Status:      string(retry.StatusInProgress),
		MaxAttempts: maxAttempts,
		StartedAt:   time.Now().UTC(),
	}

	_, err := db.Exec(`
		INSERT INTO cycles (id, task_id, status, max_attempts, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.TaskID, record.Status, record.MaxAttempts, formatTime(record.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("create cycle: %w", err)
	}

	return record, nil
}

// FinishCycle marks a cycle terminal and records its final counters.
func (db *DB) FinishCycle(cycleID string, status retry.CycleStatus, attempts int, inputTokens, outputTokens int64) error {
	result, err := db.Exec(`
		UPDATE cycles
		SET status = ?, attempts = ?, input_tokens = ?, output_tokens = ?, finished_at = ?
		WHERE id = ?
	`, string(status), attempts, inputTokens, outputTokens, formatTime(time.Now()), cycleID)
	if err != nil {
		return fmt.Errorf("finish cycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cycle %s not found", cycleID)
	}
	return nil
}

// RecordAttempt persists one attempt for a cycle.
func (db *DB) RecordAttempt(cycleID string, number int, verdict string, action retry.Action, issues []string) error {
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO attempts (id, cycle_id, number, verdict, action, issues, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), cycleID, number, verdict, string(action), string(issuesJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// GetCycle returns a cycle by ID.
func (db *DB) GetCycle(cycleID string) (*CycleRecord, error) {
	row := db.QueryRow(`
		SELECT id, task_id, status, max_attempts, attempts, input_tokens, output_tokens, started_at, finished_at
		FROM cycles WHERE id = ?
	`, cycleID)

	record, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle %s not found", cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	return record, nil
}

// ListCycles returns cycles for a task, newest first. An empty taskID
// returns all cycles.
func (db *DB) ListCycles(taskID string, limit int) ([]*CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, task_id, status, max_attempts, attempts, input_tokens, output_tokens, started_at, finished_at
		FROM cycles
	`
	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var records []*CycleRecord
	for rows.Next() {
		record, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListAttempts returns a cycle's attempts in order.
func (db *DB) ListAttempts(cycleID string) ([]*AttemptRecord, error) {
	rows, err := db.Query(`
		SELECT id, cycle_id, number, verdict, action, issues, recorded_at
		FROM attempts WHERE cycle_id = ? ORDER BY number
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var records []*AttemptRecord
	for rows.Next() {
		var (
			record     AttemptRecord
			issuesJSON sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&record.ID, &record.CycleID, &record.Number, &record.Verdict,
			&record.Action, &issuesJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if issuesJSON.Valid && issuesJSON.String != "" {
			if err := json.Unmarshal([]byte(issuesJSON.String), &record.Issues); err != nil {
				return nil, fmt.Errorf("unmarshal issues: %w", err)
			}
		}
		if t, err := parseTime(recordedAt); err == nil {
			record.RecordedAt = t
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// SaveFailureReport persists the terminal failure report for a cycle.
func (db *DB) SaveFailureReport(cycleID string, report retry.FailureReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal failure report: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO failure_reports (cycle_id, task_id, report, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cycle_id) DO UPDATE SET report = excluded.report, created_at = excluded.created_at
	`, cycleID, report.TaskID, string(reportJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save failure report: %w", err)
	}
	return nil
}

// GetFailureReport returns the failure report stored for a cycle.
func (db *DB) GetFailureReport(cycleID string) (*retry.FailureReport, error) {
	var reportJSON string
	row := db.QueryRow(`SELECT report FROM failure_reports WHERE cycle_id = ?`, cycleID)
	if err := row.Scan(&reportJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no failure report for cycle %s", cycleID)
		}
		return nil, fmt.Errorf("get failure report: %w", err)
	}

	var report retry.FailureReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("unmarshal failure report: %w", err)
	}
	return &report, nil
}

// scanner abstracts sql.Row and sql.Rows for scanCycle.
type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(s scanner) (*CycleRecord, error) {
	var (
		record     CycleRecord
		startedAt  string
		finishedAt sql.NullString
	)
	if err := s.Scan(&record.ID, &record.TaskID, &record.Status, &record.MaxAttempts,
		&record.Attempts, &record.InputTokens, &record.OutputTokens, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	if t, err := parseTime(startedAt); err == nil {
		record.StartedAt = t
	}
	record.FinishedAt = parseNullableTime(finishedAt)
	return &record, nil
}
