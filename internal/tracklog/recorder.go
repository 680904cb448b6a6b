package tracklog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var recorderLogf = monitoring.Prefixed("recorder")

// stageColumns are the pose columns of the samples table, in row order.
var stageColumns = func() []string {
	var cols []string
	for _, stage := range []string{"raw", "corrected", "filtered", "mapped"} {
		for _, axis := range []string{"tx", "ty", "tz", "yaw", "pitch", "roll"} {
			cols = append(cols, stage+"_"+axis)
		}
	}
	return cols
}()

// rowWidth is dt plus four poses.
var rowWidth = 1 + len(stageColumns)

const (
	queueLen      = 4096
	batchSize     = 256
	flushInterval = 250 * time.Millisecond
)

type sample struct {
	seq    int64
	values []float64
}

// Recorder stores each cycle in a SQLite session database. Rows are
// handed to a writer goroutine and inserted in batches; when the writer
// falls behind, rows are dropped and counted rather than stalling the
// pipeline.
type Recorder struct {
	rowBuilder
	db        *sql.DB
	path      string
	sessionID string

	seq     int64
	queue   chan sample
	dropped atomic.Int64
	written atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// RecorderOptions configures OpenRecorder.
type RecorderOptions struct {
	// Label is stored with the session.
	Label string
	// Now replaces time.Now for cycle intervals.
	Now func() time.Time
}

// OpenRecorder opens or creates the database at path, migrates it and
// starts a new session.
func OpenRecorder(path string, opts RecorderOptions) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track database %s: %w", path, err)
	}
	// one writer; also keeps in-memory databases on a single connection
	db.SetMaxOpenConns(1)

	r := &Recorder{
		rowBuilder: newRowBuilder(opts.Now),
		db:         db,
		path:       path,
		sessionID:  uuid.NewString(),
		queue:      make(chan sample, queueLen),
		done:       make(chan struct{}),
	}
	if err := r.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT INTO sessions (session_id, label) VALUES (?, ?)`, r.sessionID, opts.Label); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	go r.writer()
	recorderLogf("session %s to %s", r.sessionID, path)
	return r, nil
}

// SessionID identifies the rows written by this recorder.
func (r *Recorder) SessionID() string { return r.sessionID }

// NextLine completes the current row. The header row is stored as the
// session's column list; data rows are queued for insertion.
func (r *Recorder) NextLine() {
	labels, values := r.take()
	if len(labels) > 0 {
		if _, err := r.db.Exec(`UPDATE sessions SET columns = ? WHERE session_id = ?`,
			strings.Join(labels, ","), r.sessionID); err != nil {
			recorderLogf("failed to store columns: %v", err)
		}
		return
	}
	if len(values) != rowWidth {
		r.dropped.Add(1)
		return
	}

	r.seq++
	select {
	case r.queue <- sample{seq: r.seq, values: values}:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) writer() {
	defer close(r.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]sample, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.insert(batch); err != nil {
			recorderLogf("dropped %d rows: %v", len(batch), err)
			r.dropped.Add(int64(len(batch)))
		} else {
			r.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case s, ok := <-r.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, s)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

var insertSQL = fmt.Sprintf(`INSERT INTO samples (session_id, seq, dt, %s) VALUES (?, ?, ?%s)`,
	strings.Join(stageColumns, ", "), strings.Repeat(", ?", len(stageColumns)))

func (r *Recorder) insert(batch []sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, 0, 2+rowWidth)
	for _, s := range batch {
		args = append(args[:0], r.sessionID, s.seq)
		for _, v := range s.values {
			args = append(args, v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Written returns the number of rows committed.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Dropped returns the number of rows discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting rows, flushes the queue, closes the session and
// the database. NextLine must not be called concurrently or afterwards.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
		if _, e := r.db.Exec(`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP, dropped_rows = ? WHERE session_id = ?`,
			r.dropped.Load(), r.sessionID); e != nil {
			err = fmt.Errorf("failed to close session: %w", e)
		}
		if e := r.db.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}

// Row is a stored cycle.
type Row struct {
	Seq    int64
	Dt     float64
	Raw    pose.Pose
	Mapped pose.Pose
}

// RecentRows returns up to limit of the session's latest rows, oldest
// first.
func (r *Recorder) RecentRows(limit int) ([]Row, error) {
	rows, err := r.db.Query(`
		SELECT seq, dt,
			raw_tx, raw_ty, raw_tz, raw_yaw, raw_pitch, raw_roll,
			mapped_tx, mapped_ty, mapped_tz, mapped_yaw, mapped_pitch, mapped_roll
		FROM samples WHERE session_id = ?
		ORDER BY seq DESC LIMIT ?`, r.sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		dest := []any{&row.Seq, &row.Dt}
		for i := range row.Raw {
			dest = append(dest, &row.Raw[i])
		}
		for i := range row.Mapped {
			dest = append(dest, &row.Mapped[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
