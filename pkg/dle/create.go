package dle

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scribehq/dle/internal/atomicwrite"
	"github.com/scribehq/dle/internal/create"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/document"
	"github.com/scribehq/dle/internal/frontmatter"
)

// CreateDocRequest is the Doc Creator's input: either a raw Markdown
// Content body or a structured Sections description, optionally registered
// under DocKey immediately after creation.
type CreateDocRequest struct {
	Project string
	Path    string // relative to the project's docs_dir
	DocType string

	create.Spec

	// FrontmatterFields seeds the new document's frontmatter, merged on
	// top of the project's configured Defaults (project-level defaults
	// apply first, request fields win on key collision).
	FrontmatterFields map[string]string

	// Register, when true, adds the new document to the registry under
	// DocKey immediately after a successful write.
	Register bool
	DocKey   string
}

// CreateDocResult reports what the Doc Creator produced.
type CreateDocResult struct {
	Path       string
	ShaAfter   string
	Title      string
	Body       string
	Registered bool
}

// CreateDoc renders spec into a new document under the project's docs_dir,
// seeding frontmatter from the project's defaults merged with any fields
// the caller supplied, writes it atomically, and optionally registers it
// (§4.8 and §3's RegisteredDoc invariant that a registered path resolves
// inside docs_dir).
func (e *Engine) CreateDoc(ctx context.Context, req CreateDocRequest) (CreateDocResult, error) {
	sb, project, err := e.sandboxFor(ctx, req.Project)
	if err != nil {
		return CreateDocResult{}, err
	}

	rel := req.Path
	if !filepath.IsAbs(rel) {
		docsRel, relErr := filepath.Rel(sb.Root(), project.DocsDir)
		if relErr == nil {
			rel = filepath.Join(docsRel, req.Path)
		}
	}
	path, err := sb.Resolve(rel)
	if err != nil {
		return CreateDocResult{}, err
	}
	if err := sb.EnsureDescendantDir(filepath.Dir(path)); err != nil {
		return CreateDocResult{}, err
	}

	body := create.Render(req.Spec)
	title, _ := create.TitleAndBody(req.Spec.Title, body)

	fields := mergeDefaults(project.Defaults, req.FrontmatterFields)
	content, err := renderWithFrontmatter(body, fields)
	if err != nil {
		return CreateDocResult{}, err
	}

	var writeRes atomicwrite.Result
	lockErr := e.Locks.WithLock(ctx, path, func() error {
		if err := e.Retry.Do(ctx, func() error {
			var werr error
			writeRes, werr = atomicwrite.Write(path, content, e.Config.Writer)
			return werr
		}); err != nil {
			return err
		}
		return atomicwrite.VerifyMatches(path, writeRes.ShaAfter)
	})
	if lockErr != nil {
		return CreateDocResult{}, lockErr
	}

	result := CreateDocResult{Path: path, ShaAfter: writeRes.ShaAfter, Title: title, Body: body}

	if req.Register {
		if req.DocKey == "" {
			return result, dlerrors.New(dlerrors.DuplicateDoc, "register requested without a doc_key")
		}
		docType := req.DocType
		if docType == "" {
			docType = "generic"
		}
		if err := e.Registry.Register(ctx, req.Project, req.DocKey, path, docType); err != nil {
			return result, err
		}
		if err := e.Registry.RecordHash(ctx, req.Project, req.DocKey, writeRes.ShaAfter); err != nil {
			e.Log.Warn("failed to record baseline hash after create", zap.Error(err))
		}
		result.Registered = true
	}

	return result, nil
}

func mergeDefaults(projectDefaults, requestFields map[string]string) map[string]string {
	out := make(map[string]string, len(projectDefaults)+len(requestFields))
	for k, v := range projectDefaults {
		out[k] = v
	}
	for k, v := range requestFields {
		out[k] = v
	}
	return out
}

// renderWithFrontmatter builds a fresh frontmatter block from fields (a new
// document never has one to update in place, so UpdateFields's in-place
// rewrite doesn't apply here) and concatenates it with body.
func renderWithFrontmatter(body string, fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte(body), nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("---\n")
	for _, k := range keys {
		enc, err := yaml.Marshal(fields[k])
		if err != nil {
			return nil, dlerrors.Wrap(dlerrors.BadMetaValue, "encode frontmatter field "+k, err)
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.Write(bytes.TrimRight(enc, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	b.WriteString(body)
	return b.Bytes(), nil
}

// CrosslinkResult extends document.ValidateCrosslinks with cross-document
// `path#anchor` links (§4.7's full contract): same-document `#anchor`
// links are checked against the document's own heading slugs; links of the
// form `relative/path.md#anchor` are resolved inside the project sandbox
// and checked against the target document's headings.
type CrosslinkResult struct {
	Broken []document.BrokenLink
}

// ValidateCrosslinks checks every link in the registered document docKey,
// both same-document anchors and cross-document `path#anchor` references.
func (e *Engine) ValidateCrosslinks(ctx context.Context, project, docKey string) (CrosslinkResult, error) {
	doc, err := e.Registry.Lookup(ctx, project, docKey)
	if err != nil {
		return CrosslinkResult{}, err
	}
	sb, _, err := e.sandboxFor(ctx, project)
	if err != nil {
		return CrosslinkResult{}, err
	}
	path, err := resolveRegisteredPath(sb, doc.Path)
	if err != nil {
		return CrosslinkResult{}, err
	}

	raw, err := readFile(path)
	if err != nil {
		return CrosslinkResult{}, err
	}
	fm, err := frontmatter.Parse(raw)
	if err != nil {
		return CrosslinkResult{}, err
	}

	broken, err := document.ValidateCrosslinks(fm.Body)
	if err != nil {
		return CrosslinkResult{}, err
	}

	links, err := document.FindLinks(fm.Body)
	if err != nil {
		return CrosslinkResult{}, err
	}
	for _, link := range links {
		targetPath, anchor, ok := splitCrossDocLink(link.Target)
		if !ok {
			continue
		}
		resolved, err := sb.Resolve(filepath.Join(filepath.Dir(sb.MustRel(path)), targetPath))
		if err != nil {
			broken = append(broken, document.BrokenLink{LinkRef: link, Reason: "target path escapes project root"})
			continue
		}
		targetRaw, err := readFile(resolved)
		if err != nil {
			broken = append(broken, document.BrokenLink{LinkRef: link, Reason: "target document not found"})
			continue
		}
		targetFM, err := frontmatter.Parse(targetRaw)
		if err != nil {
			broken = append(broken, document.BrokenLink{LinkRef: link, Reason: "target document unparseable"})
			continue
		}
		if anchor != "" {
			idx, err := document.BuildIndex(targetFM.Body)
			if err != nil {
				broken = append(broken, document.BrokenLink{LinkRef: link, Reason: "target document unparseable"})
				continue
			}
			texts := make([]string, len(idx.Headings))
			for i, h := range idx.Headings {
				texts[i] = h.Text
			}
			found := false
			for _, s := range document.SlugSequence(texts) {
				if s == anchor {
					found = true
					break
				}
			}
			if !found {
				broken = append(broken, document.BrokenLink{LinkRef: link, Reason: "target document has no matching heading"})
			}
		}
	}

	return CrosslinkResult{Broken: broken}, nil
}

// splitCrossDocLink reports whether target is a cross-document link
// (neither a bare `#anchor` nor an absolute URL), splitting it into its
// path and optional anchor fragment.
func splitCrossDocLink(target string) (path, anchor string, ok bool) {
	if target == "" || target[0] == '#' {
		return "", "", false
	}
	for _, scheme := range []string{"http://", "https://", "mailto:"} {
		if len(target) >= len(scheme) && target[:len(scheme)] == scheme {
			return "", "", false
		}
	}
	for i := 0; i < len(target); i++ {
		if target[i] == '#' {
			return target[:i], target[i+1:], true
		}
	}
	return target, "", true
}
