// Package directory implements the contact directory: a read-only SQLite
// store mapping canonical contacts to their per-platform usernames.
//
// Schema: one `contact` table (c_id) plus one table per platform named
// after the platform, each holding (c_id, username) with at most one
// username per contact and platform.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"massmsg/pkg/logx"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrUnknownPlatform = errors.New("no username table for platform")
)

// ContactID is the opaque canonical identity of one contact across
// platforms.
type ContactID string

type Config struct {
	// Path is the SQLite database path (or ":memory:").
	Path string
}

// Directory holds one scoped database connection. The connection lives for
// a single broadcast invocation; the dispatcher releases it on every exit
// path.
type Directory struct {
	db  *sqlx.DB
	log logx.Logger

	// tables is the set of platform username tables, snapshotted at open
	// time. Platform names are only ever used as identifiers after passing
	// through this allowlist, never interpolated from caller input.
	tables map[string]bool
}

// Open connects to the store and snapshots its platform tables.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Directory, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("directory: database path is required")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("directory: connect: %w", err)
	}
	d, err := New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an existing connection. The caller keeps ownership semantics:
// Close releases the connection.
func New(db *sqlx.DB, log logx.Logger) (*Directory, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Directory{db: db, log: log, tables: map[string]bool{}}

	var names []string
	err := db.Select(&names,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'contact'`)
	if err != nil {
		return nil, fmt.Errorf("directory: read schema: %w", err)
	}
	for _, n := range names {
		d.tables[n] = true
	}
	d.log.Debug("directory opened", logx.Int("platform_tables", len(d.tables)))
	return d, nil
}

func (d *Directory) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Directory) table(platform string) (string, error) {
	if !d.tables[platform] {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	// Known-good identifier from the snapshot; quoting guards against
	// keyword-shaped platform names.
	return `"` + platform + `"`, nil
}

// Usernames returns all known usernames for the platform.
func (d *Directory) Usernames(ctx context.Context, platform string) ([]string, error) {
	tbl, err := d.table(platform)
	if err != nil {
		return nil, err
	}
	var names []string
	query := fmt.Sprintf(`SELECT username FROM %s ORDER BY username`, tbl)
	if err := d.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("directory: usernames for %s: %w", platform, err)
	}
	return names, nil
}

// Lookup resolves a platform username to its canonical contact.
func (d *Directory) Lookup(ctx context.Context, platform, username string) (ContactID, error) {
	tbl, err := d.table(platform)
	if err != nil {
		return "", err
	}
	var id string
	query := fmt.Sprintf(`SELECT c_id FROM %s WHERE username = ?`, tbl)
	if err := d.db.GetContext(ctx, &id, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s/%s", ErrContactNotFound, platform, username)
		}
		return "", fmt.Errorf("directory: lookup %s/%s: %w", platform, username, err)
	}
	return ContactID(id), nil
}

// Unrecognized returns exactly the given usernames that have no entry for
// the platform, preserving input order.
func (d *Directory) Unrecognized(ctx context.Context, platform string, usernames []string) ([]string, error) {
	known, err := d.Usernames(ctx, platform)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(known))
	for _, n := range known {
		set[n] = true
	}
	var out []string
	for _, u := range usernames {
		if !set[u] {
			out = append(out, u)
		}
	}
	return out, nil
}
