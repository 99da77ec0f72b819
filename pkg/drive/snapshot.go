package drive

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/drivelab/orgdrive/pkg/store"
)

// GenesisChecksum seeds the state checksum chain before any diff exists.
const GenesisChecksum = "genesis"

// kvPair is one store entry in a snapshot or diff. Pairs are captured in
// ascending key order, so equal states serialize to equal bytes.
type kvPair struct {
	Key   []byte `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// sectionDiff lists the changes one mutation made to one store section.
type sectionDiff struct {
	Section string   `cbor:"1,keyasint"`
	Puts    []kvPair `cbor:"2,keyasint"`
	Dels    [][]byte `cbor:"3,keyasint"`
}

// stateDiff is the serialized payload of one DiffRecord.
type stateDiff struct {
	Sections []sectionDiff `cbor:"1,keyasint"`
}

// PrestateHandle is a logical snapshot of the diffable state, taken before
// a mutation. Dropping it without calling Poststate records nothing.
type PrestateHandle struct {
	sections map[string][]kvPair
}

// diffedSections is every section covered by the per-mutation diff. The
// drive singleton and the history itself stay out: the checksum cell
// advances as a function of the diff, so including it would make the diff
// self-referential.
func diffedSections() []string {
	out := make([]string, 0, len(snapshotSections()))
	for _, s := range snapshotSections() {
		if s == bucketDriveState || s == bucketDiffHistory {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (t *Tenant) captureSections(sections []string) map[string][]kvPair {
	captured := make(map[string][]kvPair, len(sections))
	for _, section := range sections {
		var pairs []kvPair
		err := t.backend.Scan(section, func(key, value []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			v := make([]byte, len(value))
			copy(v, value)
			pairs = append(pairs, kvPair{Key: k, Value: v})
			return nil
		})
		if err != nil {
			panic(&store.Failure{Bucket: section, Op: "capture", Err: err})
		}
		captured[section] = pairs
	}
	return captured
}

// Prestate captures the diffable state before a mutation.
func (t *Tenant) Prestate() *PrestateHandle {
	return &PrestateHandle{sections: t.captureSections(diffedSections())}
}

// Poststate computes the difference between handle and the current state,
// advances the checksum chain, and appends the record to the diff history.
// Returns the zero DiffRecord when the mutation changed nothing.
func (t *Tenant) Poststate(handle *PrestateHandle, note string) DiffRecord {
	after := t.captureSections(diffedSections())

	var diff stateDiff
	for _, section := range diffedSections() {
		sd := diffSection(section, handle.sections[section], after[section])
		if len(sd.Puts) > 0 || len(sd.Dels) > 0 {
			diff.Sections = append(diff.Sections, sd)
		}
	}
	if len(diff.Sections) == 0 {
		return DiffRecord{}
	}

	payload, err := store.Encode(diff)
	if err != nil {
		panic(&store.Failure{Bucket: bucketDiffHistory, Op: "encode", Err: err})
	}

	state := t.driveState.Get()
	before := state.StateChecksum
	afterSum := chainChecksum(before, payload)

	record := DiffRecord{
		ID:            DiffID(string(PrefixDiff) + uuid.NewString()),
		TimestampNS:   t.nowNS(),
		Notes:         note,
		Checksum:      afterSum,
		BeforeVersion: before,
		AfterVersion:  afterSum,
		Payload:       payload,
	}
	t.diffHistory.Append(record)

	state.StateChecksum = afterSum
	state.StateTimestampNS = record.TimestampNS
	t.driveState.Set(state)

	return record
}

// diffSection computes the forward changes from before to after. Both
// slices are in ascending key order, so a single merge pass finds the
// added, changed, and removed entries.
func diffSection(section string, before, after []kvPair) sectionDiff {
	sd := sectionDiff{Section: section}
	i, j := 0, 0
	for i < len(before) && j < len(after) {
		switch cmp := bytes.Compare(before[i].Key, after[j].Key); {
		case cmp < 0:
			sd.Dels = append(sd.Dels, before[i].Key)
			i++
		case cmp > 0:
			sd.Puts = append(sd.Puts, after[j])
			j++
		default:
			if !bytes.Equal(before[i].Value, after[j].Value) {
				sd.Puts = append(sd.Puts, after[j])
			}
			i++
			j++
		}
	}
	for ; i < len(before); i++ {
		sd.Dels = append(sd.Dels, before[i].Key)
	}
	for ; j < len(after); j++ {
		sd.Puts = append(sd.Puts, after[j])
	}
	return sd
}

func chainChecksum(prev string, payload []byte) string {
	h := blake3.New()
	h.Write([]byte(prev))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// History returns the full diff history in order.
func (t *Tenant) History() []DiffRecord {
	return t.diffHistory.Items()
}

// SafelyApplyDiffs replays diffs onto the current state in order. Every
// diff's BeforeVersion must match the checksum reached so far; on any
// mismatch the whole replay is rolled back and Conflict is returned.
func (t *Tenant) SafelyApplyDiffs(diffs []DiffRecord) (int, error) {
	backup := t.captureSections(snapshotSections())

	applied := 0
	for _, d := range diffs {
		state := t.driveState.Get()
		if d.BeforeVersion != state.StateChecksum {
			t.restoreSections(snapshotSections(), backup)
			return 0, &Error{
				Code: ErrConflict,
				Message: fmt.Sprintf("diff %s expects state %s, have %s",
					d.ID, d.BeforeVersion, state.StateChecksum),
			}
		}
		if err := t.applyDiffPayload(d); err != nil {
			t.restoreSections(snapshotSections(), backup)
			return 0, err
		}
		applied++
	}
	return applied, nil
}

func (t *Tenant) applyDiffPayload(d DiffRecord) error {
	var diff stateDiff
	if err := store.Decode(d.Payload, &diff); err != nil {
		return &Error{Code: ErrConflict, Message: "malformed diff payload: " + string(d.ID)}
	}
	for _, sd := range diff.Sections {
		for _, del := range sd.Dels {
			if err := t.backend.Delete(sd.Section, del); err != nil {
				panic(&store.Failure{Bucket: sd.Section, Op: "apply", Err: err})
			}
		}
		for _, put := range sd.Puts {
			if err := t.backend.Set(sd.Section, put.Key, put.Value); err != nil {
				panic(&store.Failure{Bucket: sd.Section, Op: "apply", Err: err})
			}
		}
	}
	t.diffHistory.Append(d)

	state := t.driveState.Get()
	state.StateChecksum = d.AfterVersion
	state.StateTimestampNS = d.TimestampNS
	t.driveState.Set(state)
	return nil
}

func (t *Tenant) restoreSections(sections []string, backup map[string][]kvPair) {
	for _, section := range sections {
		if err := t.backend.Clear(section); err != nil {
			panic(&store.Failure{Bucket: section, Op: "restore", Err: err})
		}
		for _, pair := range backup[section] {
			if err := t.backend.Set(section, pair.Key, pair.Value); err != nil {
				panic(&store.Failure{Bucket: section, Op: "restore", Err: err})
			}
		}
	}
}

// entireState is the whole-state export shape: every section in canonical
// order, entries in ascending key order.
type entireState struct {
	Sections []snapshotSection `cbor:"1,keyasint"`
}

type snapshotSection struct {
	Name    string   `cbor:"1,keyasint"`
	Entries []kvPair `cbor:"2,keyasint"`
}

// ExportSnapshot serializes the entire tenant state deterministically:
// snapshot → apply → snapshot yields identical bytes.
func (t *Tenant) ExportSnapshot() ([]byte, error) {
	captured := t.captureSections(snapshotSections())
	state := entireState{Sections: make([]snapshotSection, 0, len(captured))}
	for _, name := range snapshotSections() {
		state.Sections = append(state.Sections, snapshotSection{
			Name:    name,
			Entries: captured[name],
		})
	}
	blob, err := store.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return blob, nil
}

// ApplySnapshot replaces the entire tenant state with the snapshot's
// contents. Unknown sections are rejected rather than silently dropped.
func (t *Tenant) ApplySnapshot(blob []byte) error {
	var state entireState
	if err := store.Decode(blob, &state); err != nil {
		return &Error{Code: ErrBadRequest, Message: "malformed snapshot blob", Field: "snapshot"}
	}

	known := make(map[string]bool, len(snapshotSections()))
	for _, s := range snapshotSections() {
		known[s] = true
	}
	for _, section := range state.Sections {
		if !known[section.Name] {
			return &Error{Code: ErrBadRequest, Message: "unknown snapshot section: " + section.Name, Field: "snapshot"}
		}
	}

	for _, name := range snapshotSections() {
		if err := t.backend.Clear(name); err != nil {
			panic(&store.Failure{Bucket: name, Op: "clear", Err: err})
		}
	}
	for _, section := range state.Sections {
		for _, pair := range section.Entries {
			if err := t.backend.Set(section.Name, pair.Key, pair.Value); err != nil {
				panic(&store.Failure{Bucket: section.Name, Op: "apply", Err: err})
			}
		}
	}
	return nil
}

// WriteBlob frames and compresses a snapshot for the persistence area:
// 8 bytes big-endian length, then that many bytes of zstd-compressed
// snapshot.
func WriteBlob(w io.Writer, snapshot []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(snapshot, nil)
	enc.Close()

	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(compressed)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("writing blob length: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing blob body: %w", err)
	}
	return nil
}

// ReadBlob reads a framed snapshot back. Blobs whose stated length exceeds
// maxBytes are refused before any allocation, and decompression is capped
// at maxBytes as well, so a small frame cannot expand past the ceiling.
func ReadBlob(r io.Reader, maxBytes uint64) ([]byte, error) {
	var length [8]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, fmt.Errorf("reading blob length: %w", err)
	}
	n := binary.BigEndian.Uint64(length[:])
	if n > maxBytes {
		return nil, fmt.Errorf("blob length %d exceeds ceiling %d", n, maxBytes)
	}

	compressed := make([]byte, n)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("reading blob body: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBytes))
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	snapshot, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing blob: %w", err)
	}
	return snapshot, nil
}
