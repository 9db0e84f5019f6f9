// Package dle is the Document Lifecycle Engine's public facade: the
// `manage_docs`, `append_entry`, `rotate_log`, `list_projects`,
// `get_project`, `set_project`, `read_recent`, and `query_entries`
// operations that §6 names as the contract an external transport adapter
// calls. The adapter owns argument parsing and transport framing; Engine
// owns everything from registry lookup through atomic write and audit
// mirror.
package dle

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/scribehq/dle/internal/applog"
	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/lockmgr"
	"github.com/scribehq/dle/internal/metrics"
	"github.com/scribehq/dle/internal/registry"
	"github.com/scribehq/dle/internal/retry"
	"github.com/scribehq/dle/internal/sandbox"

	auditpkg "github.com/scribehq/dle/internal/audit"
)

// Engine wires every core component behind the operation set §6
// enumerates. It is safe for concurrent use: every resource touching a
// document or log path goes through Locks first.
type Engine struct {
	Config   *config.Config
	Registry *registry.Registry
	Locks    *lockmgr.Manager
	AppLog   *applog.Engine
	Audit    *auditpkg.Mirror
	Metrics  *metrics.Collectors
	Retry    retry.Policy
	Log      *zap.Logger
	RepoSlug string
}

// New builds an Engine from its already-constructed collaborators. Callers
// (cmd/scribe-admin, or any future adapter) are responsible for opening
// the registry.Store and building the logger/metrics before calling this.
func New(cfg *config.Config, reg *registry.Registry, log *zap.Logger, mc *metrics.Collectors, repoSlug string) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	locks := lockmgr.New(cfg.LockTimeout())
	return &Engine{
		Config:   cfg,
		Registry: reg,
		Locks:    locks,
		AppLog:   applog.New(locks, repoSlug, cfg.Writer),
		Audit:    auditpkg.New(reg, log, mc),
		Metrics:  mc,
		Retry:    retry.Default(),
		Log:      log,
		RepoSlug: repoSlug,
	}
}

// sandboxFor resolves project's canonical root into a Sandbox scoped to
// it. Built fresh per call rather than cached: projects are registered
// infrequently relative to mutations, and a fresh EvalSymlinks catches a
// root that moved or was remounted since the last call.
func (e *Engine) sandboxFor(ctx context.Context, project string) (*sandbox.Sandbox, registry.Project, error) {
	p, err := e.Registry.GetProject(ctx, project)
	if err != nil {
		return nil, registry.Project{}, err
	}
	sb, err := sandbox.New(p.Root)
	if err != nil {
		return nil, registry.Project{}, err
	}
	return sb, p, nil
}

// resolveRegisteredPath re-verifies that a RegisteredDoc's stored absolute
// path is still a descendant of sb's root, guarding against the path
// drifting outside the project (e.g. root moved, symlink changed) between
// registration and use.
func resolveRegisteredPath(sb *sandbox.Sandbox, absPath string) (string, error) {
	rel, err := filepath.Rel(sb.Root(), absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", dlerrors.Newf(dlerrors.PathEscape, "registered path %q is no longer inside project root %q", absPath, sb.Root())
	}
	return sb.Resolve(rel)
}

// ListProjects returns every registered project.
func (e *Engine) ListProjects(ctx context.Context) ([]registry.Project, error) {
	return e.Registry.ListProjects(ctx)
}

// GetProject returns the named project.
func (e *Engine) GetProject(ctx context.Context, name string) (registry.Project, error) {
	return e.Registry.GetProject(ctx, name)
}

// SetProject registers (or re-registers) a project. root must already
// exist on disk; docsDir defaults to "<root>/docs" when empty.
func (e *Engine) SetProject(ctx context.Context, name, root, docsRel, progressLogRel string, defaults map[string]string) (registry.Project, error) {
	sb, err := sandbox.New(root)
	if err != nil {
		return registry.Project{}, err
	}

	if docsRel == "" {
		docsRel = "docs"
	}
	docsDir, err := sb.Resolve(docsRel)
	if err != nil {
		return registry.Project{}, err
	}
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return registry.Project{}, dlerrors.Wrap(dlerrors.IOTemporary, "create docs directory", err)
	}

	if progressLogRel == "" {
		progressLogRel = "docs/progress.md"
	}
	progressLogPath, err := sb.Resolve(progressLogRel)
	if err != nil {
		return registry.Project{}, err
	}

	p := registry.Project{
		Name: name, Root: sb.Root(), DocsDir: docsDir,
		ProgressLogPath: progressLogPath, Defaults: defaults,
	}
	if err := e.Registry.RegisterProject(ctx, p); err != nil {
		return registry.Project{}, err
	}
	return e.Registry.GetProject(ctx, name)
}
