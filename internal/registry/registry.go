package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/scribehq/dle/internal/cache"
	"github.com/scribehq/dle/internal/dlerrors"
)

// docCacheTTL bounds how long a Lookup result is served from memory before
// the next call falls through to SQLite again. Short enough that a
// RecordHash/Register from a concurrent request (which both invalidate the
// entry directly) is the common path for freshness, not the TTL.
const docCacheTTL = 30 * time.Second

// docCacheMax bounds the registry's in-memory doc cache the same way the
// teacher bounded its Linear issue cache: an eviction policy, not an
// unbounded map, for a process that may have many projects registered.
const docCacheMax = 2048

// Project is the registry's view of §3's Project entity.
type Project struct {
	Name            string
	Root            string
	DocsDir         string
	ProgressLogPath string
	Defaults        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RegisteredDoc is the registry's view of §3's RegisteredDoc entity.
type RegisteredDoc struct {
	Project      string
	Key          string
	Path         string
	DocType      string
	BaselineHash string
	CurrentHash  string
	Flags        []string
	LastAccessAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Registry is the bidirectional project↔doc map described in §4.9, backed
// by a Store. Lookup results are cached in-process (docCacheTTL/docCacheMax)
// to avoid a SQLite round trip on every structural edit's registry check;
// Register and RecordHash invalidate the entry they just changed.
type Registry struct {
	store    *Store
	docCache *cache.Cache[RegisteredDoc]
}

// New wraps an open Store as a Registry.
func New(store *Store) *Registry {
	return &Registry{store: store, docCache: cache.New[RegisteredDoc](docCacheTTL, docCacheMax)}
}

func docCacheKey(project, key string) string { return project + "\x00" + key }

// DocCacheLen reports how many RegisteredDoc entries the in-process cache
// holds (expired entries not yet swept included), surfaced by cmd/scribe-admin status as a coarse
// cache-health signal.
func (r *Registry) DocCacheLen() int {
	return r.docCache.Len()
}

// Close stops the doc cache's background cleanup goroutine. It does not
// close the underlying Store — callers own that separately (cmd/scribe-admin
// closes Store after Engine shutdown, the same way it opened it before
// Engine construction).
func (r *Registry) Close() {
	r.docCache.Stop()
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// RegisterProject inserts a new project row or, if a project with the same
// name already exists, updates its root, docs dir, progress log path and
// defaults. Any failed insert (such as a root already owned by a project of
// another name) is reported as PATH_COLLISION.
func (r *Registry) RegisterProject(ctx context.Context, p Project) error {
	defaultsJSON, err := json.Marshal(p.Defaults)
	if err != nil {
		return dlerrors.Wrap(dlerrors.BadMetaValue, "encode project defaults", err)
	}
	now := nowRFC3339()
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO projects (name, root, docs_dir, progress_log, defaults_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root = excluded.root,
			docs_dir = excluded.docs_dir,
			progress_log = excluded.progress_log,
			defaults_json = excluded.defaults_json,
			updated_at = excluded.updated_at
	`, p.Name, p.Root, p.DocsDir, p.ProgressLogPath, string(defaultsJSON), now, now)
	if err != nil {
		return dlerrors.Wrap(dlerrors.PathCollision, "register project", err)
	}
	return nil
}

// GetProject returns the named project, or DOC_NOT_FOUND (projects share
// the same not-found contract as documents; there is no separate
// PROJECT_NOT_FOUND code in the taxonomy).
func (r *Registry) GetProject(ctx context.Context, name string) (Project, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT name, root, docs_dir, progress_log, defaults_json, created_at, updated_at
		FROM projects WHERE name = ?
	`, name)

	var p Project
	var defaultsJSON, createdAt, updatedAt string
	if err := row.Scan(&p.Name, &p.Root, &p.DocsDir, &p.ProgressLogPath, &defaultsJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, dlerrors.Newf(dlerrors.DocNotFound, "no project named %q", name).
				WithDiagnostics(map[string]any{"project": name})
		}
		return Project{}, dlerrors.Wrap(dlerrors.IOTemporary, "query project", err)
	}
	_ = json.Unmarshal([]byte(defaultsJSON), &p.Defaults)
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return p, nil
}

// ListProjects returns every registered project.
func (r *Registry) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT name, root, docs_dir, progress_log, defaults_json, created_at, updated_at
		FROM projects ORDER BY name
	`)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.IOTemporary, "list projects", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var defaultsJSON, createdAt, updatedAt string
		if err := rows.Scan(&p.Name, &p.Root, &p.DocsDir, &p.ProgressLogPath, &defaultsJSON, &createdAt, &updatedAt); err != nil {
			return nil, dlerrors.Wrap(dlerrors.IOTemporary, "scan project", err)
		}
		_ = json.Unmarshal([]byte(defaultsJSON), &p.Defaults)
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Register inserts a new RegisteredDoc, failing with DUPLICATE_DOC if the
// (project, key) pair already exists or PATH_COLLISION if the path is
// already registered under a different key within the same project.
func (r *Registry) Register(ctx context.Context, project, key, path, docType string) error {
	var exists int
	err := r.store.db.QueryRowContext(ctx, `
		SELECT 1 FROM registered_docs WHERE project = ? AND doc_key = ?
	`, project, key).Scan(&exists)
	if err == nil {
		return dlerrors.Newf(dlerrors.DuplicateDoc, "doc key %q already registered for project %q", key, project).
			WithDiagnostics(map[string]any{"project": project, "doc_key": key})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return dlerrors.Wrap(dlerrors.IOTemporary, "check duplicate doc key", err)
	}

	err = r.store.db.QueryRowContext(ctx, `
		SELECT 1 FROM registered_docs WHERE project = ? AND path = ?
	`, project, path).Scan(&exists)
	if err == nil {
		return dlerrors.Newf(dlerrors.PathCollision, "path %q already registered under project %q", path, project).
			WithDiagnostics(map[string]any{"project": project, "path": path})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return dlerrors.Wrap(dlerrors.IOTemporary, "check path collision", err)
	}

	now := nowRFC3339()
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO registered_docs
			(project, doc_key, path, doc_type, baseline_hash, current_hash, flags_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', '', '[]', ?, ?)
	`, project, key, path, docType, now, now)
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "insert registered doc", err)
	}
	r.docCache.Delete(docCacheKey(project, key))
	return nil
}

// Lookup resolves (project, key) to a RegisteredDoc, or DOC_NOT_FOUND.
// Successful results are served from an in-process cache for docCacheTTL to
// spare every structural edit's registry check a SQLite round trip; a hit
// still touches last_access_at so staleness tracking doesn't silently stop
// once a doc is warm in cache.
func (r *Registry) Lookup(ctx context.Context, project, key string) (RegisteredDoc, error) {
	cacheKey := docCacheKey(project, key)
	if cached, ok := r.docCache.Get(cacheKey); ok {
		_ = r.touchAccess(ctx, project, key)
		return cached, nil
	}

	row := r.store.db.QueryRowContext(ctx, `
		SELECT project, doc_key, path, doc_type, baseline_hash, current_hash, flags_json, last_access_at, created_at, updated_at
		FROM registered_docs WHERE project = ? AND doc_key = ?
	`, project, key)
	doc, err := scanDoc(row)
	if err != nil {
		return RegisteredDoc{}, err
	}

	r.docCache.Set(cacheKey, doc)
	_ = r.touchAccess(ctx, project, key)
	return doc, nil
}

func scanDoc(row *sql.Row) (RegisteredDoc, error) {
	var d RegisteredDoc
	var flagsJSON, createdAt, updatedAt string
	var lastAccess sql.NullString
	if err := row.Scan(&d.Project, &d.Key, &d.Path, &d.DocType, &d.BaselineHash, &d.CurrentHash, &flagsJSON, &lastAccess, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RegisteredDoc{}, dlerrors.New(dlerrors.DocNotFound, "document key not registered")
		}
		return RegisteredDoc{}, dlerrors.Wrap(dlerrors.IOTemporary, "query registered doc", err)
	}
	_ = json.Unmarshal([]byte(flagsJSON), &d.Flags)
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if lastAccess.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAccess.String)
		d.LastAccessAt = &t
	}
	return d, nil
}

// TouchAccess updates last_access_at to now. Supplemental behavior (not in
// the original §4.9 contract): registry reads of a document are as load-
// bearing for staleness decisions as writes, so read access is tracked the
// same way mtimes are tracked on disk. The cached entry is dropped so the
// next Lookup reads the new timestamp.
func (r *Registry) TouchAccess(ctx context.Context, project, key string) error {
	if err := r.touchAccess(ctx, project, key); err != nil {
		return err
	}
	r.docCache.Delete(docCacheKey(project, key))
	return nil
}

// touchAccess is TouchAccess without the cache invalidation, used by
// Lookup's own per-read touch so a warm entry stays cached.
func (r *Registry) touchAccess(ctx context.Context, project, key string) error {
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE registered_docs SET last_access_at = ? WHERE project = ? AND doc_key = ?
	`, nowRFC3339(), project, key)
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "touch last_access_at", err)
	}
	return nil
}

// RecordHash updates current_hash and flags after an accepted mutation
// (§4.9). baselineDiffers is appended to flags when currentHash no longer
// equals the stored baseline_hash.
func (r *Registry) RecordHash(ctx context.Context, project, key, currentHash string) error {
	doc, err := r.Lookup(ctx, project, key)
	if err != nil {
		return err
	}

	flags := doc.Flags
	baselineDiffers := doc.BaselineHash != "" && doc.BaselineHash != currentHash
	flags = setFlag(flags, "baseline_differs", baselineDiffers)

	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return dlerrors.Wrap(dlerrors.BadMetaValue, "encode doc flags", err)
	}

	baseline := doc.BaselineHash
	if baseline == "" {
		baseline = currentHash
	}

	_, err = r.store.db.ExecContext(ctx, `
		UPDATE registered_docs
		SET current_hash = ?, baseline_hash = ?, flags_json = ?, updated_at = ?
		WHERE project = ? AND doc_key = ?
	`, currentHash, baseline, string(flagsJSON), nowRFC3339(), project, key)
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "record current hash", err)
	}
	r.docCache.Delete(docCacheKey(project, key))
	return nil
}

// DocChange is the registry's view of §3's DocChange entity (§4.13).
type DocChange struct {
	ID            int64
	Project       string
	Doc           string
	Section       string
	Action        string
	Agent         string
	ShaBefore     string
	ShaAfter      string
	Metadata      map[string]string
	MirrorPending bool
	CreatedAt     time.Time
}

// RecordChange inserts one DocChange row, marked mirror_pending=false: this
// is the success path called immediately after a durable file write
// (§4.13). Metadata is stored as JSON.
func (r *Registry) RecordChange(ctx context.Context, c DocChange) (int64, error) {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return 0, dlerrors.Wrap(dlerrors.BadMetaValue, "encode doc change metadata", err)
	}
	res, err := r.store.db.ExecContext(ctx, `
		INSERT INTO doc_changes (project, doc, section, action, agent, sha_before, sha_after, metadata_json, mirror_pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, c.Project, c.Doc, c.Section, c.Action, c.Agent, c.ShaBefore, c.ShaAfter, string(metaJSON), nowRFC3339())
	if err != nil {
		return 0, dlerrors.Wrap(dlerrors.IOTemporary, "record doc change", err)
	}
	return res.LastInsertId()
}

// MarkMirrorPending flags a file write that succeeded but whose audit
// record could not be persisted, so Reconcile can retry it later (§4.13).
// It inserts c as a new doc_changes row with mirror_pending=1, storing
// c.Metadata as JSON.
func (r *Registry) MarkMirrorPending(ctx context.Context, c DocChange) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return dlerrors.Wrap(dlerrors.BadMetaValue, "encode doc change metadata", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO doc_changes (project, doc, section, action, agent, sha_before, sha_after, metadata_json, mirror_pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, c.Project, c.Doc, c.Section, c.Action, c.Agent, c.ShaBefore, c.ShaAfter, string(metaJSON), nowRFC3339())
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "mark doc change mirror_pending", err)
	}
	return nil
}

// PendingMirrors returns every DocChange row still flagged mirror_pending.
func (r *Registry) PendingMirrors(ctx context.Context) ([]DocChange, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, project, doc, section, action, agent, sha_before, sha_after, metadata_json, mirror_pending, created_at
		FROM doc_changes WHERE mirror_pending = 1 ORDER BY id
	`)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.IOTemporary, "query pending mirrors", err)
	}
	defer rows.Close()

	var out []DocChange
	for rows.Next() {
		c, err := scanDocChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveMirrorPending clears the mirror_pending flag once reconciliation
// has confirmed the row reflects reality.
func (r *Registry) ResolveMirrorPending(ctx context.Context, id int64) error {
	_, err := r.store.db.ExecContext(ctx, `UPDATE doc_changes SET mirror_pending = 0 WHERE id = ?`, id)
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "resolve mirror_pending", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocChange(row scanner) (DocChange, error) {
	var c DocChange
	var metaJSON, createdAt string
	var mirrorPending int
	if err := row.Scan(&c.ID, &c.Project, &c.Doc, &c.Section, &c.Action, &c.Agent, &c.ShaBefore, &c.ShaAfter, &metaJSON, &mirrorPending, &createdAt); err != nil {
		return DocChange{}, dlerrors.Wrap(dlerrors.IOTemporary, "scan doc change", err)
	}
	_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
	c.MirrorPending = mirrorPending != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return c, nil
}

// LogEntryMirror is a single log entry's durable mirror row, used for the
// supplemental read_recent/query_entries operations (§6) so callers can
// query log history without re-reading and re-parsing the flat log files.
type LogEntryMirror struct {
	Project   string
	LogKey    string
	EntryID   string
	Agent     string
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// MirrorLogEntry persists one appended log entry's mirror row.
func (r *Registry) MirrorLogEntry(ctx context.Context, e LogEntryMirror) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return dlerrors.Wrap(dlerrors.BadMetaValue, "encode log entry metadata", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO log_entries_mirror (project, log_key, entry_id, agent, message, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Project, e.LogKey, e.EntryID, e.Agent, e.Message, string(metaJSON), nowRFC3339())
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "mirror log entry", err)
	}
	return nil
}

// LogQueryFilters narrows QueryLogEntries; zero-valued fields are
// unconstrained.
type LogQueryFilters struct {
	Project string
	LogKey  string
	Limit   int
}

// QueryLogEntries returns mirrored log entries most-recent-first, matching
// the optional project/log filters.
func (r *Registry) QueryLogEntries(ctx context.Context, f LogQueryFilters) ([]LogEntryMirror, error) {
	query := `SELECT project, log_key, entry_id, agent, message, metadata_json, created_at FROM log_entries_mirror WHERE 1=1`
	var args []any
	if f.Project != "" {
		query += " AND project = ?"
		args = append(args, f.Project)
	}
	if f.LogKey != "" {
		query += " AND log_key = ?"
		args = append(args, f.LogKey)
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.IOTemporary, "query log entries", err)
	}
	defer rows.Close()

	var out []LogEntryMirror
	for rows.Next() {
		var e LogEntryMirror
		var metaJSON, createdAt string
		if err := rows.Scan(&e.Project, &e.LogKey, &e.EntryID, &e.Agent, &e.Message, &metaJSON, &createdAt); err != nil {
			return nil, dlerrors.Wrap(dlerrors.IOTemporary, "scan log entry", err)
		}
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func setFlag(flags []string, name string, present bool) []string {
	out := make([]string, 0, len(flags)+1)
	for _, f := range flags {
		if f == name {
			continue
		}
		out = append(out, f)
	}
	if present {
		out = append(out, name)
	}
	return out
}
