package dle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scribehq/dle/internal/applog"
	"github.com/scribehq/dle/internal/atomicwrite"
	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/document"
	"github.com/scribehq/dle/internal/frontmatter"
	"github.com/scribehq/dle/internal/mutate"
	"github.com/scribehq/dle/internal/registry"
)

// MutationRequest is the `manage_docs` operation's input: a single edit
// (or, for apply_patch, an ordered list of edits) targeting one registered
// document.
type MutationRequest struct {
	Project string
	DocKey  string
	Agent   string

	// Action is one of mutate.KindReplaceRange, mutate.KindReplaceBlock,
	// mutate.KindReplaceSection, mutate.KindAppend, mutate.KindStatusUpdate,
	// or the literal "apply_patch", "normalize_headers", or "generate_toc".
	Action string

	Edit            mutate.Edit
	Edits           []mutate.Edit // apply_patch only
	PatchSourceHash string        // apply_patch's optional stale-source guard

	// AutoLogMessage, if non-empty, appends a doc_updates entry after a
	// successful mutation (the "optional auto-log entry" in §2's data
	// flow). ExtraMetadata is merged into the auto-log's metadata (doc,
	// section, action are always included).
	AutoLogMessage string
	ExtraMetadata  map[string]string
}

// MutationResult is `manage_docs`'s output, matching §4.4's per-operation
// contract.
type MutationResult struct {
	OK             bool
	DocPath        string
	Section        string
	ShaBefore      string
	ShaAfter       string
	PreviewDiff    string
	BodyLineOffset int
}

// ManageDocs applies req against its target document: registry lookup,
// sandbox resolution, frontmatter split, the requested body mutation,
// atomic write, post-write verification, registry hash update, audit
// record, and an optional auto-log entry — in that order, per §2's data
// flow.
func (e *Engine) ManageDocs(ctx context.Context, req MutationRequest) (MutationResult, error) {
	start := time.Now()
	res, err := e.manageDocs(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if e.Metrics != nil {
		e.Metrics.ObserveMutation(req.Action, outcome, time.Since(start).Seconds())
	}
	return res, err
}

func (e *Engine) manageDocs(ctx context.Context, req MutationRequest) (MutationResult, error) {
	doc, err := e.Registry.Lookup(ctx, req.Project, req.DocKey)
	if err != nil {
		return MutationResult{}, err
	}

	sb, _, err := e.sandboxFor(ctx, req.Project)
	if err != nil {
		return MutationResult{}, err
	}
	path, err := resolveRegisteredPath(sb, doc.Path)
	if err != nil {
		return MutationResult{}, err
	}

	var result MutationResult
	lockErr := e.Locks.WithLock(ctx, path, func() error {
		raw, err := readFile(path)
		if err != nil {
			return err
		}
		fm, err := frontmatter.Parse(raw)
		if err != nil {
			return err
		}

		shaBefore := atomicwrite.ShaHex(raw)
		oldBody := fm.Body

		if req.Action == "apply_patch" && req.PatchSourceHash != "" && req.PatchSourceHash != shaBefore {
			return dlerrors.Newf(dlerrors.StaleSource, "patch_source_hash %q does not match current document hash %q", req.PatchSourceHash, shaBefore)
		}

		newBody, section, err := applyAction(fm.Body, req, e.Config.TOC)
		if err != nil {
			return err
		}

		fm.Body = newBody
		newContent := frontmatter.Render(fm)

		var writeRes atomicwrite.Result
		err = e.Retry.Do(ctx, func() error {
			writeRes, err = atomicwrite.Write(path, newContent, e.Config.Writer)
			return err
		})
		if err != nil {
			return err
		}
		if err := atomicwrite.VerifyMatches(path, writeRes.ShaAfter); err != nil {
			return err
		}

		if err := e.Registry.RecordHash(ctx, req.Project, req.DocKey, writeRes.ShaAfter); err != nil {
			e.Log.Warn("failed to record current_hash after mutation", zap.Error(err))
		}

		change := registry.DocChange{
			Project: req.Project, Doc: req.DocKey, Section: section, Action: req.Action,
			Agent: req.Agent, ShaBefore: shaBefore, ShaAfter: writeRes.ShaAfter,
			Metadata: req.ExtraMetadata,
		}
		if err := e.Audit.Record(ctx, change); err != nil {
			e.Log.Warn("audit mirror record failed", zap.Error(err))
		}

		result = MutationResult{
			OK: true, DocPath: path, Section: section,
			ShaBefore: shaBefore, ShaAfter: writeRes.ShaAfter,
			PreviewDiff:    previewDiff(oldBody, newBody),
			BodyLineOffset: fm.LineOffset,
		}
		return nil
	})
	if lockErr != nil {
		return MutationResult{}, lockErr
	}

	if req.AutoLogMessage != "" {
		e.autoLogDocUpdate(ctx, req, result)
	}

	return result, nil
}

func applyAction(body string, req MutationRequest, toc config.TOCConfig) (newBody, section string, err error) {
	switch req.Action {
	case string(mutate.KindReplaceRange):
		newBody, err = mutate.ReplaceRange(body, req.Edit.StartLine, req.Edit.EndLine, req.Edit.Content)
		return newBody, "", err
	case string(mutate.KindReplaceBlock):
		newBody, err = mutate.ReplaceBlock(body, req.Edit.AnchorText, req.Edit.Content)
		return newBody, "", err
	case string(mutate.KindReplaceSection):
		newBody, err = mutate.ReplaceSection(body, req.Edit.SectionSlug, req.Edit.Content)
		return newBody, req.Edit.SectionSlug, err
	case string(mutate.KindAppend):
		return mutate.AppendContent(body, req.Edit.Content), "", nil
	case string(mutate.KindStatusUpdate):
		newBody, err = mutate.StatusUpdate(body, req.Edit.SectionSlug, req.Edit.Token, req.Edit.Status, req.Edit.Proof)
		return newBody, req.Edit.SectionSlug, err
	case "apply_patch":
		newBody, err = mutate.ApplyPatch(body, req.Edits)
		return newBody, "", err
	case "normalize_headers":
		newBody, err = document.NormalizeHeaders(body)
		return newBody, "", err
	case "generate_toc":
		return generateTOCFixingMarkers(body, toc)
	default:
		return "", "", dlerrors.Newf(dlerrors.RangeOutOfBounds, "unknown manage_docs action %q", req.Action)
	}
}

// generateTOCFixingMarkers generates (or regenerates) the TOC block,
// inserting marker lines first if the document doesn't have them yet
// (§4.6: "If markers are absent the TOC is inserted immediately after
// frontmatter... and after any leading H1").
func generateTOCFixingMarkers(body string, toc config.TOCConfig) (string, string, error) {
	out, err := document.GenerateTOC(body, toc)
	if err == nil {
		return out, "", nil
	}
	if dlerrors.CodeOf(err) != dlerrors.SectionNotFound {
		return "", "", err
	}
	withMarkers, err := document.InsertTOCMarkers(body, toc)
	if err != nil {
		return "", "", err
	}
	out, err = document.GenerateTOC(withMarkers, toc)
	return out, "", err
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.IOTemporary, fmt.Sprintf("read document %q", path), err)
	}
	return data, nil
}

func previewDiff(oldBody, newBody string) string {
	if oldBody == newBody {
		return ""
	}
	oldLines := strings.Split(oldBody, "\n")
	newLines := strings.Split(newBody, "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "-%d lines, +%d lines\n", len(oldLines), len(newLines))

	commonPrefix := 0
	for commonPrefix < len(oldLines) && commonPrefix < len(newLines) && oldLines[commonPrefix] == newLines[commonPrefix] {
		commonPrefix++
	}
	commonSuffix := 0
	for commonSuffix < len(oldLines)-commonPrefix && commonSuffix < len(newLines)-commonPrefix &&
		oldLines[len(oldLines)-1-commonSuffix] == newLines[len(newLines)-1-commonSuffix] {
		commonSuffix++
	}

	for _, l := range oldLines[commonPrefix : len(oldLines)-commonSuffix] {
		fmt.Fprintf(&b, "-%s\n", l)
	}
	for _, l := range newLines[commonPrefix : len(newLines)-commonSuffix] {
		fmt.Fprintf(&b, "+%s\n", l)
	}
	return b.String()
}

func (e *Engine) autoLogDocUpdate(ctx context.Context, req MutationRequest, res MutationResult) {
	def, ok := e.Config.LogByKey("doc_updates")
	if !ok {
		return
	}
	_, project, err := e.sandboxFor(ctx, req.Project)
	if err != nil {
		return
	}
	path := applogPathFor(def, project)

	meta := map[string]string{"doc": req.DocKey, "section": res.Section, "action": req.Action}
	for k, v := range req.ExtraMetadata {
		meta[k] = v
	}

	_, err = e.AppLog.Append(ctx, path, def, applogEntry(req.Agent, req.Project, req.AutoLogMessage, meta), time.Now())
	if err != nil {
		e.Log.Warn("auto-log append failed", zap.Error(err))
	}
}

// applogPathFor resolves def's path template against project's docs
// directory (the same {docs_dir} substitution every log append goes
// through, whether triggered manually via append_entry or automatically
// here).
func applogPathFor(def config.LogDefinition, project registry.Project) string {
	return applog.ResolvePath(def, project.DocsDir)
}

// applogEntry builds the Entry passed to AppLog.Append; Engine.Append fills
// in the timestamp, emoji, entry ID, and repo slug.
func applogEntry(agent, project, message string, meta map[string]string) applog.Entry {
	return applog.Entry{Agent: agent, Project: project, Message: message, Metadata: meta}
}
