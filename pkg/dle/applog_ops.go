package dle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scribehq/dle/internal/applog"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/registry"
	"github.com/scribehq/dle/internal/rotation"
)

// AppendEntryRequest is the `append_entry` operation's input.
type AppendEntryRequest struct {
	Project   string
	LogType   string
	Agent     string
	Message   string
	Metadata  map[string]string
	Emoji     string
	Timestamp time.Time // zero means "now"

	// Items, when non-empty, requests bulk mode: each entry shares
	// Project/LogType but carries its own agent/message/metadata.
	Items   []BulkItem
	Stagger time.Duration
}

// BulkItem is one entry of a bulk append_entry call.
type BulkItem struct {
	Agent    string
	Message  string
	Metadata map[string]string
}

// AppendEntryResult reports what append_entry produced.
type AppendEntryResult struct {
	EntryIDs []string
	Path     string
}

// AppendEntry resolves logType against the config's log routing table,
// appends (or bulk-appends) under the log file's advisory lock, and best-
// effort mirrors each entry into the registry (§4.11's "optional DB
// mirror" step of the append flow).
func (e *Engine) AppendEntry(ctx context.Context, req AppendEntryRequest) (AppendEntryResult, error) {
	start := time.Now()
	res, err := e.appendEntry(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if e.Metrics != nil {
		e.Metrics.ObserveAppend(req.LogType, outcome, time.Since(start).Seconds())
	}
	return res, err
}

func (e *Engine) appendEntry(ctx context.Context, req AppendEntryRequest) (AppendEntryResult, error) {
	def, ok := e.Config.LogByKey(req.LogType)
	if !ok {
		return AppendEntryResult{}, dlerrors.Newf(dlerrors.DocNotFound, "unknown log type %q", req.LogType)
	}

	_, project, err := e.sandboxFor(ctx, req.Project)
	if err != nil {
		return AppendEntryResult{}, err
	}
	path := applog.ResolvePath(def, project.DocsDir)

	now := req.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if len(req.Items) > 0 {
		entries := make([]applog.Entry, len(req.Items))
		for i, item := range req.Items {
			entries[i] = applog.Entry{Agent: item.Agent, Project: req.Project, Message: item.Message, Metadata: item.Metadata, Emoji: req.Emoji}
		}
		results, err := e.AppLog.BulkAppend(ctx, path, def, entries, now, req.Stagger)
		if err != nil {
			return AppendEntryResult{}, err
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.EntryID
			e.mirrorAppend(ctx, req.Project, req.LogType, r, req.Items[i].Agent, req.Items[i].Message, req.Items[i].Metadata)
		}
		return AppendEntryResult{EntryIDs: ids, Path: path}, nil
	}

	entry := applog.Entry{Agent: req.Agent, Project: req.Project, Message: req.Message, Metadata: req.Metadata, Emoji: req.Emoji}
	result, err := e.AppLog.Append(ctx, path, def, entry, now)
	if err != nil {
		return AppendEntryResult{}, err
	}
	e.mirrorAppend(ctx, req.Project, req.LogType, result, req.Agent, req.Message, req.Metadata)
	return AppendEntryResult{EntryIDs: []string{result.EntryID}, Path: path}, nil
}

func (e *Engine) mirrorAppend(ctx context.Context, project, logType string, r applog.AppendResult, agent, message string, meta map[string]string) {
	err := e.Registry.MirrorLogEntry(ctx, registry.LogEntryMirror{
		Project: project, LogKey: logType, EntryID: r.EntryID,
		Agent: agent, Message: message, Metadata: meta,
	})
	if err != nil {
		e.Log.Warn("log entry mirror failed", zap.String("project", project), zap.String("log", logType), zap.Error(err))
	}
}

// RotateLogRequest is the `rotate_log` operation's input.
type RotateLogRequest struct {
	Project string
	LogType string
	Suffix  string // archive suffix, typically a timestamp-derived string
	Now     time.Time
	Force   bool // bypass the advisory threshold check
}

// RotateLogResult reports what rotate_log produced.
type RotateLogResult struct {
	Rotated      bool
	Reason       string // set when Rotated is false because threshold wasn't met
	ArchivedPath string
	Record       rotation.Record
}

// RotateLog archives logType's active file and starts a fresh one under
// the log's advisory lock (§4.12). When Force is false and the active
// log's entry count is below the configured threshold, no-op: rotation is
// advisory, not automatic (§6's `rotation.threshold_entries`).
func (e *Engine) RotateLog(ctx context.Context, req RotateLogRequest) (RotateLogResult, error) {
	res, err := e.rotateLog(ctx, req)
	if err == nil && res.Rotated && e.Metrics != nil {
		e.Metrics.ObserveRotation(req.LogType)
	}
	return res, err
}

func (e *Engine) rotateLog(ctx context.Context, req RotateLogRequest) (RotateLogResult, error) {
	def, ok := e.Config.LogByKey(req.LogType)
	if !ok {
		return RotateLogResult{}, dlerrors.Newf(dlerrors.DocNotFound, "unknown log type %q", req.LogType)
	}
	_, project, err := e.sandboxFor(ctx, req.Project)
	if err != nil {
		return RotateLogResult{}, err
	}
	path := applog.ResolvePath(def, project.DocsDir)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	suffix := req.Suffix
	if suffix == "" {
		suffix = now.UTC().Format("20060102T150405Z")
	}

	var result RotateLogResult
	lockErr := e.Locks.WithLock(ctx, path, func() error {
		if !req.Force {
			// A missing active log (nothing appended yet) reads as zero
			// entries rather than an error; CheckThreshold then naturally
			// declines to rotate.
			current, _ := readFile(path)
			shouldRotate, reason := rotation.CheckThreshold(e.Config.Rotation.ThresholdEntries, rotation.CountEntries(current))
			if !shouldRotate {
				result = RotateLogResult{Rotated: false, Reason: fmt.Sprintf("below rotation threshold: %s", reason)}
				return nil
			}
		}

		rotRes, err := rotation.Rotate(path, suffix, now, e.Config.Writer)
		if err != nil {
			return err
		}
		result = RotateLogResult{Rotated: true, ArchivedPath: rotRes.ArchivedPath, Record: rotRes.Record}
		return nil
	})
	if lockErr != nil {
		return RotateLogResult{}, lockErr
	}
	return result, nil
}

// ReadRecent returns the n most recently mirrored entries for a project
// (all logs, most-recent-first).
func (e *Engine) ReadRecent(ctx context.Context, project string, n int) ([]registry.LogEntryMirror, error) {
	return e.Registry.QueryLogEntries(ctx, registry.LogQueryFilters{Project: project, Limit: n})
}

// QueryEntries returns mirrored entries matching f, most-recent-first.
func (e *Engine) QueryEntries(ctx context.Context, f registry.LogQueryFilters) ([]registry.LogEntryMirror, error) {
	return e.Registry.QueryLogEntries(ctx, f)
}
