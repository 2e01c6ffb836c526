// Package jobdb keeps the drawing-job history in SQLite. The store is an
// audit trail, never load-bearing: the pipeline logs and ignores store
// errors, and the daemon runs fine with the store disabled.
package jobdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the job history database.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the job history database at path. Run
// MigrateUp before first use.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// single writer; keep readers from tripping over SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	return &DB{DB: db, path: path}, nil
}

// JobRecord is one row of job history.
type JobRecord struct {
	ID          string
	Channel     string
	SubmittedAt time.Time
	FinishedAt  *time.Time
	State       string
	Class       string
	Error       string
	Video       string
	Snapshot    string
}

// RecordJob inserts a newly admitted job in the running state.
func (db *DB) RecordJob(id, channel string, submittedAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO jobs (job_id, channel, submitted_at, state) VALUES (?, ?, ?, 'running')`,
		id, channel, submittedAt.UTC(),
	)
	return err
}

// FinishJob records a job's terminal state and any media it produced.
func (db *DB) FinishJob(id, state, class, errText, video, snapshot string) error {
	res, err := db.Exec(
		`UPDATE jobs
		 SET state = ?, error_class = ?, error = ?, video = ?, snapshot = ?, finished_at = ?
		 WHERE job_id = ?`,
		state, class, errText, video, snapshot, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish job %s: no such job", id)
	}
	return nil
}

// RecentJobs returns up to limit jobs, newest first.
func (db *DB) RecentJobs(limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT job_id, channel, submitted_at, finished_at, state, error_class, error, video, snapshot
		 FROM jobs ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var finished sql.NullTime
		var class, errText, video, snapshot sql.NullString
		if err := rows.Scan(&j.ID, &j.Channel, &j.SubmittedAt, &finished, &j.State, &class, &errText, &video, &snapshot); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		j.Class = class.String
		j.Error = errText.String
		j.Video = video.String
		j.Snapshot = snapshot.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DayCount is the number of jobs submitted on one calendar day.
type DayCount struct {
	Day   string
	Count int
}

// CountByDay returns per-day job totals for the last days days, oldest
// first. Days with no jobs are omitted.
func (db *DB) CountByDay(days int) ([]DayCount, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := db.Query(
		`SELECT date(submitted_at) AS day, COUNT(*)
		 FROM jobs
		 WHERE submitted_at >= date('now', ?)
		 GROUP BY day ORDER BY day`,
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []DayCount
	for rows.Next() {
		var c DayCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
