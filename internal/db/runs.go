package db

import (
	"database/sql"
	"fmt"
)

// StartRun records a new run in the started state and returns its id.
func (s *Store) StartRun(period, day string, startedUTC int64) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO run_logs (period, run_day_utc, run_started_utc, status)
		VALUES (?, ?, ?, ?)`, period, day, startedUTC, RunStarted)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	return res.LastInsertId()
}

// HasSuccessfulRunOnDay reports whether a run of the period already
// succeeded on the given UTC day.
func (s *Store) HasSuccessfulRunOnDay(period, day string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM run_logs
		WHERE period = ? AND run_day_utc = ? AND status = ?
		LIMIT 1`, period, day, RunSuccess).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LatestSuccessfulRun returns the most recently finished successful run of
// the period, or nil when there is none.
func (s *Store) LatestSuccessfulRun(period string) (*RunLog, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM run_logs
		WHERE period = ? AND status = ?
		ORDER BY run_finished_utc DESC, run_started_utc DESC, id DESC
		LIMIT 1`, period, RunSuccess)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// FinishRun writes the terminal state of a run. It only touches rows that
// are still in the started state, so a run is finished at most once.
func (s *Store) FinishRun(id int64, f RunFinish) error {
	res, err := s.db.Exec(`
		UPDATE run_logs SET
			run_finished_utc = ?,
			status = ?,
			fetched_posts = ?,
			extracted_ideas = ?,
			window_ideas = ?,
			notified = ?,
			message = ?
		WHERE id = ? AND status = ?`,
		f.FinishedUTC, f.Status, f.FetchedPosts, f.ExtractedIdeas, f.WindowIdeas, f.Notified, f.Message,
		id, RunStarted,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d is not in the started state", id)
	}
	return nil
}

// GetRun returns a single run log by id.
func (s *Store) GetRun(id int64) (*RunLog, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM run_logs WHERE id = ?`, id))
}

// ListRunLogs returns the most recent runs, newest first.
func (s *Store) ListRunLogs(limit int) ([]RunLog, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM run_logs
		ORDER BY run_started_utc DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunLog
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

const runColumns = `id, period, run_day_utc, run_started_utc, run_finished_utc, status,
	fetched_posts, extracted_ideas, window_ideas, notified, message`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunLog, error) {
	var r RunLog
	var finished sql.NullInt64
	var status string
	if err := row.Scan(
		&r.ID, &r.Period, &r.RunDay, &r.StartedUTC, &finished, &status,
		&r.FetchedPosts, &r.ExtractedIdeas, &r.WindowIdeas, &r.Notified, &r.Message,
	); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if finished.Valid {
		v := finished.Int64
		r.FinishedUTC = &v
	}
	return &r, nil
}
