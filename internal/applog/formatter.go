// Package applog implements the Append Log Engine (§4.11): canonical line
// formatting, required-metadata enforcement, and deterministic entry IDs.
// It writes through internal/atomicwrite-style append semantics, grounded
// on theRebelliousNerd-codenerd's internal/tactile AuditFileLogger
// (open-append, one JSON line per event) — generalized here to the
// engine's plain-text canonical template instead of JSON.
package applog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scribehq/dle/internal/dlerrors"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Entry is one log line's logical content before formatting.
type Entry struct {
	Emoji     string
	Timestamp time.Time
	Agent     string
	Project   string
	Message   string
	Metadata  map[string]string

	RepoSlug string
}

// Format renders e per the canonical template from §4.11:
//
//	[<emoji>] [<YYYY-MM-DD HH:MM:SS UTC>] [Agent: <agent>] [Project: <project>] [ID: <entry_id>] <message> | k1=v1; k2=v2; …
func Format(e Entry) (string, error) {
	if err := validateMetadata(e.Metadata); err != nil {
		return "", err
	}

	id, err := EntryID(e)
	if err != nil {
		return "", err
	}

	line := fmt.Sprintf("[%s] [%s] [Agent: %s] [Project: %s] [ID: %s] %s",
		e.Emoji, e.Timestamp.UTC().Format(timeLayout), e.Agent, e.Project, id, e.Message)

	if len(e.Metadata) > 0 {
		line += " | " + serializeMetadata(e.Metadata)
	}

	return line, nil
}

func validateMetadata(meta map[string]string) error {
	for k, v := range meta {
		if strings.ContainsAny(v, "\n\r") {
			return dlerrors.Newf(dlerrors.BadMetaValue, "metadata value for %q contains a newline", k).
				WithDiagnostics(map[string]any{"key": k})
		}
	}
	return nil
}

func serializeMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + meta[k]
	}
	return strings.Join(pairs, "; ")
}

// EntryID computes entry_id = sha256(repo_slug|project_slug|timestamp|agent|message|sha256(sorted_meta)).hex[:32]
func EntryID(e Entry) (string, error) {
	if err := validateMetadata(e.Metadata); err != nil {
		return "", err
	}
	metaDigest := sha256.Sum256([]byte(serializeMetadata(e.Metadata)))
	payload := strings.Join([]string{
		e.RepoSlug,
		e.Project,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Agent,
		e.Message,
		hex.EncodeToString(metaDigest[:]),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:32], nil
}

// RequiredMetaError enforces a LogDefinition's required_metadata list
// before any write is attempted (§4.11).
func RequiredMetaError(required []string, meta map[string]string) error {
	var missing []string
	for _, key := range required {
		if _, ok := meta[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return dlerrors.Newf(dlerrors.MissingMetadata, "missing required metadata keys: %s", strings.Join(missing, ", ")).
			WithDiagnostics(map[string]any{"missing": missing})
	}
	return nil
}
