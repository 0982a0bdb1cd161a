package database

import (
	"context"
	"database/sql"
	"time"

	"media-editor/internal/logging"
	"media-editor/internal/metrics"
)

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportRunning   ExportStatus = "running"
	ExportDone      ExportStatus = "done"
	ExportError     ExportStatus = "error"
	ExportCancelled ExportStatus = "cancelled"
)

// Final reports whether no further updates are expected.
func (s ExportStatus) Final() bool {
	return s == ExportDone || s == ExportError || s == ExportCancelled
}

// ExportRecord is one row of export history.
type ExportRecord struct {
	ID        string       `json:"id"`
	Output    string       `json:"output"`
	Status    ExportStatus `json:"status"`
	Frames    int          `json:"frames"`
	Total     int          `json:"total"`
	Message   string       `json:"message,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CreateExport records a queued job.
func (d *Database) CreateExport(ctx context.Context, id, output string, total int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_export", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO exports (id, output, status, total)
		VALUES (?, ?, ?, ?)
	`, id, output, ExportQueued, total)
	return err
}

// UpdateExportProgress marks a job running at frame of total. Rows already
// in a final state are left alone.
func (d *Database) UpdateExportProgress(ctx context.Context, id string, frame, total int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_export", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		UPDATE exports
		SET status = ?, frames = ?, total = ?, updated_at = strftime('%s', 'now')
		WHERE id = ? AND status IN (?, ?)
	`, ExportRunning, frame, total, id, ExportQueued, ExportRunning)
	return err
}

// FinishExport stores the final status of a job.
func (d *Database) FinishExport(ctx context.Context, id string, status ExportStatus, frames int, message string) error {
	start := time.Now()
	var err error
	defer func() {
		recordQuery("finish_export", start, err)
		if err == nil {
			d.refreshExportMetrics(context.Background())
		}
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		UPDATE exports
		SET status = ?, frames = MAX(frames, ?), message = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, status, frames, message, id)
	return err
}

// GetExport returns one export, or sql.ErrNoRows.
func (d *Database) GetExport(ctx context.Context, id string) (*ExportRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, output, status, frames, total, message, created_at, updated_at
		FROM exports WHERE id = ?
	`, id)
	return scanExport(row)
}

// ListExports returns the most recent exports first.
func (d *Database) ListExports(ctx context.Context, limit int) ([]ExportRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_exports", start, err) }()

	if limit <= 0 {
		limit = 50
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, output, status, frames, total, message, created_at, updated_at
		FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logging.Warn("failed to close export rows: %v", cerr)
		}
	}()

	var out []ExportRecord
	for rows.Next() {
		var rec *ExportRecord
		if rec, err = scanExport(rows); err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	err = rows.Err()
	return out, err
}

// DeleteFinishedExports removes finished jobs last updated before cutoff and
// returns how many rows went.
func (d *Database) DeleteFinishedExports(ctx context.Context, cutoff time.Time) (n int64, err error) {
	start := time.Now()
	defer func() {
		recordQuery("delete_exports", start, err)
		if err == nil && n > 0 {
			d.refreshExportMetrics(context.Background())
		}
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		DELETE FROM exports
		WHERE status IN (?, ?, ?) AND updated_at < ?
	`, ExportDone, ExportError, ExportCancelled, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (*ExportRecord, error) {
	var rec ExportRecord
	var message sql.NullString
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Output, &rec.Status, &rec.Frames, &rec.Total, &message, &created, &updated); err != nil {
		return nil, err
	}
	rec.Message = message.String
	rec.CreatedAt = time.Unix(created, 0)
	rec.UpdatedAt = time.Unix(updated, 0)
	return &rec, nil
}

// refreshExportMetrics recounts exports per status.
func (d *Database) refreshExportMetrics(ctx context.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM exports GROUP BY status")
	if err != nil {
		logging.Debug("failed to count exports: %v", err)
		return
	}
	defer func() { _ = rows.Close() }()

	for _, s := range []ExportStatus{ExportQueued, ExportRunning, ExportDone, ExportError, ExportCancelled} {
		metrics.ExportHistoryTotal.WithLabelValues(string(s)).Set(0)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return
		}
		metrics.ExportHistoryTotal.WithLabelValues(status).Set(float64(n))
	}
}
