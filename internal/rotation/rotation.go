// Package rotation implements the Rotation Engine (§4.12): archiving the
// current log file, computing its SHA-256 and entry count, and writing a
// new active log whose header embeds a RotationRecord chained to the
// previous archive. The hash-chain shape (prev hash + root hash carried
// forward) is grounded on other_examples' Merkle-like AppendLog, adapted
// here from an in-memory hash chain to one anchored in on-disk files.
package rotation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/dle/internal/atomicwrite"
	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
)

// Record is §3's RotationRecord entity.
type Record struct {
	RotationID         string
	Sequence           int
	Timestamp          time.Time
	PreviousPath       string
	PreviousSHA256     string
	PreviousEntryCount int
	ChainPreviousHash  string
	ChainRootHash      string
}

var logLineRe = regexp.MustCompile(`^\[\S+\] \[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} UTC\] \[Agent: `)

// CountEntries counts the lines in data that match the canonical log line
// grammar (§6), the definition of "entry count" used throughout rotation.
func CountEntries(data []byte) int {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if logLineRe.MatchString(line) {
			n++
		}
	}
	return n
}

// headerNone is emitted for rotation header fields that have no value at
// sequence 1, per §6: "Values absent for sequence 1 are emitted as None."
const headerNone = "None"

// RenderHeader renders the rotation header block embedded at the top of a
// freshly-rotated active log file, per §6's enumerated field list.
//
// ChainRootHash is rendered whenever it is populated, including at
// sequence 1: a file was archived to produce this header (Rotate always
// archives something before writing a fresh active log), so the root of
// the chain is never actually absent — only the *previous rotation's*
// fields (path/hash/entry count of the archive before this one, and the
// previous link in the hash chain) are genuinely absent at sequence 1.
// Losing ChainRootHash here would make the next rotation re-derive a
// root from whatever it archives instead of carrying the oldest
// archive's hash forward, breaking the integrity chain (§4.12).
func RenderHeader(r Record) string {
	prevPath := headerNone
	prevHash := headerNone
	prevEntries := headerNone
	chainPrev := headerNone
	chainRoot := headerNone
	if r.Sequence > 1 {
		prevPath = r.PreviousPath
		prevHash = r.PreviousSHA256
		prevEntries = strconv.Itoa(r.PreviousEntryCount)
		chainPrev = r.ChainPreviousHash
	}
	if r.ChainRootHash != "" {
		chainRoot = r.ChainRootHash
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!--\n")
	fmt.Fprintf(&b, "Rotation ID: %s\n", r.RotationID)
	fmt.Fprintf(&b, "Rotation Timestamp: %s\n", r.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Current Sequence: %d\n", r.Sequence)
	fmt.Fprintf(&b, "Total Rotations: %d\n", r.Sequence-1)
	fmt.Fprintf(&b, "Previous Log Reference:\n")
	fmt.Fprintf(&b, "  Path: %s\n", prevPath)
	fmt.Fprintf(&b, "  Hash: %s\n", prevHash)
	fmt.Fprintf(&b, "  Entries: %s\n", prevEntries)
	fmt.Fprintf(&b, "Hash Chain Information:\n")
	fmt.Fprintf(&b, "  Chain Sequence: %d\n", r.Sequence)
	fmt.Fprintf(&b, "  Previous Hash: %s\n", chainPrev)
	fmt.Fprintf(&b, "  Root Hash: %s\n", chainRoot)
	fmt.Fprintf(&b, "-->\n\n")
	return b.String()
}

var rotationIDRe = regexp.MustCompile(`(?m)^Rotation ID: (\S+)`)
var chainRootRe = regexp.MustCompile(`(?m)^  Root Hash: (\S+)`)
var sequenceRe = regexp.MustCompile(`(?m)^Current Sequence: (\d+)`)
var prevLogHashRe = regexp.MustCompile(`(?m)^  Hash: (\S+)`)

// HeaderFields is everything ParseHeader recovers from a previously
// rotated log's embedded header.
type HeaderFields struct {
	RotationID     string
	Sequence       int
	PreviousSHA256 string
	ChainRootHash  string
}

// ParseHeader extracts the fields RenderHeader wrote, used when rotating a
// log that is already at sequence N>1 to recover the chain's root hash,
// and when verifying an existing chain.
func ParseHeader(data []byte) (rotationID string, sequence int, chainRootHash string, ok bool) {
	f, ok := ParseHeaderFields(data)
	return f.RotationID, f.Sequence, f.ChainRootHash, ok
}

// ParseHeaderFields is ParseHeader's full-fidelity counterpart, also
// recovering the previous archive's recorded SHA-256 so VerifyChain can
// check it against the archive's actual on-disk hash.
func ParseHeaderFields(data []byte) (HeaderFields, bool) {
	m := sequenceRe.FindSubmatch(data)
	if m == nil {
		return HeaderFields{}, false
	}
	seq, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return HeaderFields{}, false
	}
	f := HeaderFields{Sequence: seq}
	if im := rotationIDRe.FindSubmatch(data); im != nil {
		f.RotationID = string(im[1])
	}
	if rm := chainRootRe.FindSubmatch(data); rm != nil {
		f.ChainRootHash = normalizeNone(string(rm[1]))
	}
	if hm := prevLogHashRe.FindSubmatch(data); hm != nil {
		f.PreviousSHA256 = normalizeNone(string(hm[1]))
	}
	return f, true
}

func normalizeNone(v string) string {
	if v == headerNone {
		return ""
	}
	return v
}

// Result reports what Rotate did, for audit logging and cmd/scribe-admin
// status output.
type Result struct {
	Record       Record
	ArchivedPath string
}

// Rotate archives activePath by renaming it to a `<name>.<suffix>.md`
// sibling (numbered fallback on collision), computes its hash and entry
// count, and writes a fresh active log at activePath whose header embeds
// the resulting RotationRecord (§4.12).
//
// suffix is typically a timestamp-derived string supplied by the caller.
// Rotate never reads the wall clock itself: the header's timestamp is the
// now argument, so callers that need determinism pass it explicitly.
func Rotate(activePath, suffix string, now time.Time, cfg config.WriterConfig) (Result, error) {
	data, err := os.ReadFile(activePath)
	if err != nil {
		if os.IsNotExist(err) {
			data = nil
		} else {
			return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "read active log for rotation", err)
		}
	}

	_, prevSeq, prevChainRoot, hadHeader := ParseHeader(data)
	sequence := 1
	if hadHeader {
		sequence = prevSeq + 1
	}

	archivedPath, err := archivePath(activePath, suffix)
	if err != nil {
		return Result{}, err
	}

	if err := os.Rename(activePath, archivedPath); err != nil {
		if !os.IsNotExist(err) {
			return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "archive active log", err)
		}
		// Nothing to archive (log never existed); still produce sequence 1.
		archivedPath = ""
	}

	var archivedData []byte
	if archivedPath != "" {
		archivedData, err = os.ReadFile(archivedPath)
		if err != nil {
			return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "read archived log", err)
		}
	}
	prevHash := atomicwrite.ShaHex(archivedData)
	prevEntryCount := CountEntries(archivedData)

	chainRoot := prevChainRoot
	if sequence == 1 {
		chainRoot = prevHash
	} else if chainRoot == "" {
		// Header existed but carried no root (shouldn't normally happen);
		// fall back to treating this archive as the root.
		chainRoot = prevHash
	}

	record := Record{
		RotationID:         uuid.NewString(),
		Sequence:           sequence,
		Timestamp:          now,
		PreviousPath:       archivedPath,
		PreviousSHA256:     prevHash,
		PreviousEntryCount: prevEntryCount,
		ChainPreviousHash:  prevHash,
		ChainRootHash:      chainRoot,
	}
	if sequence == 1 {
		record.PreviousPath = ""
		record.PreviousSHA256 = ""
		record.ChainPreviousHash = ""
	}

	header := RenderHeader(record)
	if _, err := atomicwrite.Write(activePath, []byte(header), cfg); err != nil {
		return Result{}, err
	}

	return Result{Record: record, ArchivedPath: archivedPath}, nil
}

// archivePath computes `<name>.<suffix>.md`, falling back to a numbered
// suffix (`<name>.<suffix>-2.md`, `-3`, …) if a file with that name already
// exists — the collision handling §4.12 calls for.
func archivePath(activePath, suffix string) (string, error) {
	dir := filepath.Dir(activePath)
	ext := filepath.Ext(activePath)
	base := strings.TrimSuffix(filepath.Base(activePath), ext)

	candidate := filepath.Join(dir, fmt.Sprintf("%s.%s%s", base, suffix, ext))
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	for n := 2; n < 1000; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%s-%d%s", base, suffix, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", dlerrors.Newf(dlerrors.IOTemporary, "could not find free archive name for %q", activePath)
}

// CheckThreshold is the supplemental advisory check named in SPEC_FULL.md:
// §6's rotation.threshold_entries is "surfaced as a reminder; not auto-
// enforced." It never triggers rotation itself.
func CheckThreshold(threshold, currentEntries int) (bool, string) {
	if threshold <= 0 || currentEntries < threshold {
		return false, ""
	}
	return true, fmt.Sprintf("log has %d entries, at or above the configured rotation threshold of %d", currentEntries, threshold)
}

// ChainFiles returns the archived log files belonging to the same rotation
// chain as activePath, in chain order (oldest first), by scanning dir for
// `<base>.*<ext>` siblings and sorting by the embedded suffix. VerifyChain
// uses it to walk the chain.
func ChainFiles(activePath string) ([]string, error) {
	dir := filepath.Dir(activePath)
	ext := filepath.Ext(activePath)
	base := strings.TrimSuffix(filepath.Base(activePath), ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.IOTemporary, "list log directory", err)
	}

	prefix := base + "."
	var matches []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) && name != filepath.Base(activePath) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// VerifyChain re-reads every archived file in the chain plus the active
// file and checks property 6: for every sequence i in [2..N],
// sha256(file(i-1)) == record(i).previous_sha256, and all files share the
// same chain_root_hash.
func VerifyChain(activePath string) error {
	files, err := ChainFiles(activePath)
	if err != nil {
		return err
	}
	files = append(files, activePath)

	var rootHash string
	var rootSet bool
	var prevActualHash string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return dlerrors.Wrap(dlerrors.IOTemporary, "read chain file", err)
		}
		fields, hadHeader := ParseHeaderFields(data)
		if !hadHeader {
			prevActualHash = atomicwrite.ShaHex(data)
			continue
		}

		if fields.Sequence > 1 && prevActualHash != "" && fields.PreviousSHA256 != prevActualHash {
			return dlerrors.Newf(dlerrors.RotationBroken, "previous_sha256 in %q does not match actual hash of the prior archive", path).
				WithDiagnostics(map[string]any{"path": path, "recorded": fields.PreviousSHA256, "actual": prevActualHash})
		}

		if !rootSet {
			rootHash = fields.ChainRootHash
			rootSet = true
		} else if fields.ChainRootHash != "" && rootHash != "" && fields.ChainRootHash != rootHash {
			return dlerrors.Newf(dlerrors.RotationBroken, "chain root hash mismatch in %q", path).
				WithDiagnostics(map[string]any{"path": path, "expected_root": rootHash, "actual_root": fields.ChainRootHash})
		}
		prevActualHash = atomicwrite.ShaHex(data)
	}
	return nil
}
