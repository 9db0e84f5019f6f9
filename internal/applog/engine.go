// Package applog's Engine glues the canonical line Format (formatter.go)
// to a single per-log-file append, serialized through internal/lockmgr the
// same way a registered document's writes are serialized through
// internal/atomicwrite — except a log append is a pure O_APPEND write, not
// a temp-file-and-rename replace, since §3's Log invariant ("entries are
// never rewritten") is best satisfied by never touching existing bytes at
// all.
package applog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scribehq/dle/internal/atomicwrite"
	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/lockmgr"
)

// AppendResult reports what a single append produced, for the audit
// mirror and the optional log_entries_mirror row.
type AppendResult struct {
	EntryID string
	Line    string
	SHA256  string // sha256 of the full file after the append
	Path    string
}

// Engine appends formatted lines to log files under a shared lock manager.
type Engine struct {
	locks    *lockmgr.Manager
	repoSlug string
	writer   config.WriterConfig
}

// New builds an Engine that serializes appends through locks (normally the
// same Manager guarding document writes — log files are a distinct keyspace
// by path so there's no cross-contention with document locks) and stamps
// every entry_id with repoSlug.
func New(locks *lockmgr.Manager, repoSlug string, writer config.WriterConfig) *Engine {
	return &Engine{locks: locks, repoSlug: repoSlug, writer: writer}
}

// Append validates e against def's required metadata, formats it, and
// appends the line to path under path's advisory lock. now is supplied by
// the caller rather than read from the wall clock here, so callers can
// test deterministically and so BulkAppend can stagger timestamps itself.
func (en *Engine) Append(ctx context.Context, path string, def config.LogDefinition, e Entry, now time.Time) (AppendResult, error) {
	if err := RequiredMetaError(def.RequiredMeta, e.Metadata); err != nil {
		return AppendResult{}, err
	}

	e.RepoSlug = en.repoSlug
	e.Timestamp = now
	if e.Emoji == "" {
		e.Emoji = def.EmojiDefault
	}

	line, err := Format(e)
	if err != nil {
		return AppendResult{}, err
	}
	entryID, err := EntryID(e)
	if err != nil {
		return AppendResult{}, err
	}

	var result AppendResult
	err = en.locks.WithLock(ctx, path, func() error {
		sha, werr := appendLine(path, line, en.writer)
		if werr != nil {
			return werr
		}
		result = AppendResult{EntryID: entryID, Line: line, SHA256: sha, Path: path}
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// BulkAppend appends N entries under a single lock acquisition (§4.11),
// assigning monotonic per-entry timestamps staggered by stagger (default
// 1s per §4.11) unless an entry already carries a non-zero Timestamp.
// Pacing the stagger through a rate.Limiter (rather than a bare
// time.Sleep loop) keeps it consistent with internal/retry's pacing idiom
// and lets ctx cancellation abort a long bulk append cleanly.
func (en *Engine) BulkAppend(ctx context.Context, path string, def config.LogDefinition, entries []Entry, start time.Time, stagger time.Duration) ([]AppendResult, error) {
	if stagger <= 0 {
		stagger = time.Second
	}
	for _, e := range entries {
		if err := RequiredMetaError(def.RequiredMeta, e.Metadata); err != nil {
			return nil, err
		}
	}

	limiter := rate.NewLimiter(rate.Every(stagger), 1)
	// Consume the initial burst token so the first entry doesn't have to
	// wait but every subsequent one is paced by `stagger`.
	_ = limiter.Allow()

	results := make([]AppendResult, 0, len(entries))
	err := en.locks.WithLock(ctx, path, func() error {
		ts := start
		for i, e := range entries {
			if e.Timestamp.IsZero() {
				if i > 0 {
					if err := limiter.Wait(ctx); err != nil {
						return dlerrors.Wrap(dlerrors.IOTemporary, "bulk append stagger wait", err)
					}
					ts = ts.Add(stagger)
				}
				e.Timestamp = ts
			}
			e.RepoSlug = en.repoSlug
			if e.Emoji == "" {
				e.Emoji = def.EmojiDefault
			}

			line, err := Format(e)
			if err != nil {
				return err
			}
			entryID, err := EntryID(e)
			if err != nil {
				return err
			}
			sha, err := appendLine(path, line, en.writer)
			if err != nil {
				return err
			}
			results = append(results, AppendResult{EntryID: entryID, Line: line, SHA256: sha, Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func appendLine(path, line string, cfg config.WriterConfig) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", dlerrors.Wrap(dlerrors.IOTemporary, "create log directory", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", dlerrors.Wrap(dlerrors.IOTemporary, "open log for append", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return "", dlerrors.Wrap(dlerrors.IOTemporary, "append log line", err)
	}
	if cfg.Fsync {
		if err := f.Sync(); err != nil {
			return "", dlerrors.Wrap(dlerrors.IOTemporary, "fsync log file", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", dlerrors.Wrap(dlerrors.IOTemporary, "reread log after append", err)
	}
	return atomicwrite.ShaHex(data), nil
}

// ResolvePath expands {docs_dir} in a LogDefinition's path_template.
func ResolvePath(def config.LogDefinition, docsDir string) string {
	return strings.ReplaceAll(def.PathTemplate, "{docs_dir}", docsDir)
}
