package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-editor/internal/filesystem"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
	"media-editor/internal/orchestrator"
)

// ProbeEntry is a cached probe result.
type ProbeEntry struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
	Duration float64   `json:"duration"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	HasAudio bool      `json:"hasAudio"`
	ProbedAt time.Time `json:"probedAt"`
}

// Matches reports whether the entry still describes a file with this size
// and modification time.
func (e *ProbeEntry) Matches(size int64, modTime time.Time) bool {
	return e.Size == size && e.ModTime.Unix() == modTime.Unix()
}

// GetProbe returns the cached entry for path, or sql.ErrNoRows.
func (d *Database) GetProbe(ctx context.Context, path string) (*ProbeEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_probe", start, ignoreNoRows(err)) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e ProbeEntry
	var modTime, probedAt int64
	err = d.db.QueryRowContext(ctx, `
		SELECT path, size, mod_time, duration, width, height, has_audio, probed_at
		FROM probes WHERE path = ?
	`, path).Scan(&e.Path, &e.Size, &modTime, &e.Duration, &e.Width, &e.Height, &e.HasAudio, &probedAt)
	if err != nil {
		return nil, err
	}
	e.ModTime = time.Unix(modTime, 0)
	e.ProbedAt = time.Unix(probedAt, 0)
	return &e, nil
}

// PutProbe inserts or replaces the entry for e.Path.
func (d *Database) PutProbe(ctx context.Context, e *ProbeEntry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put_probe", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO probes (path, size, mod_time, duration, width, height, has_audio, probed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			has_audio = excluded.has_audio,
			probed_at = excluded.probed_at
	`, e.Path, e.Size, e.ModTime.Unix(), e.Duration, e.Width, e.Height, e.HasAudio)
	return err
}

// DeleteProbe removes the entry for path.
func (d *Database) DeleteProbe(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_probe", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM probes WHERE path = ?", path)
	return err
}

// ProbePaths lists every cached path.
func (d *Database) ProbePaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("probe_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT path FROM probes ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logging.Warn("failed to close probe rows: %v", cerr)
		}
	}()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	return paths, err
}

// CountProbes returns the number of cached entries and updates the gauge.
func (d *Database) CountProbes(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM probes").Scan(&n); err != nil {
		return 0, err
	}
	metrics.ProbeCacheEntries.Set(float64(n))
	return n, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

// ProbeCache adapts the probes table to orchestrator.ProbeCache. Entries
// are only trusted while the file's size and modification time match.
type ProbeCache struct {
	db *Database
}

var _ orchestrator.ProbeCache = (*ProbeCache)(nil)

// NewProbeCache wraps db.
func NewProbeCache(db *Database) *ProbeCache {
	return &ProbeCache{db: db}
}

// Lookup returns the cached probe of path if the file is unchanged.
func (c *ProbeCache) Lookup(path string) (orchestrator.ProbeRecord, bool) {
	e, ok := c.Current(context.Background(), path)
	if !ok {
		return orchestrator.ProbeRecord{}, false
	}
	return orchestrator.ProbeRecord{Duration: e.Duration, Width: e.Width, Height: e.Height}, true
}

// Current returns the entry for path if it matches the file on disk.
func (c *ProbeCache) Current(ctx context.Context, path string) (*ProbeEntry, bool) {
	info, err := filesystem.Stat(path)
	if err != nil {
		return nil, false
	}
	e, err := c.db.GetProbe(ctx, path)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn("probe cache lookup failed for %s: %v", path, err)
		}
		return nil, false
	}
	if !e.Matches(info.Size(), info.ModTime()) {
		return nil, false
	}
	return e, true
}

// Store records a probe of path. Audio presence already known for an
// unchanged file is kept.
func (c *ProbeCache) Store(path string, rec orchestrator.ProbeRecord) {
	ctx := context.Background()
	info, err := filesystem.Stat(path)
	if err != nil {
		logging.Debug("not caching probe of %s: %v", path, err)
		return
	}
	e := &ProbeEntry{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Duration: rec.Duration,
		Width:    rec.Width,
		Height:   rec.Height,
	}
	if old, ok := c.Current(ctx, path); ok {
		e.HasAudio = old.HasAudio
	}
	if err := c.db.PutProbe(ctx, e); err != nil {
		logging.Warn("failed to cache probe of %s: %v", path, err)
	}
}

// Put stores a complete entry for path, stamping the file's current size
// and modification time.
func (c *ProbeCache) Put(ctx context.Context, path string, e ProbeEntry) error {
	info, err := filesystem.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	e.Path, e.Size, e.ModTime = path, info.Size(), info.ModTime()
	return c.db.PutProbe(ctx, &e)
}
