// Package journal implements the push journal (spec.md §4.6): a small
// persistent record of per-component upload results, consulted so a
// resumed push can skip components already confirmed on the server.
package journal

import (
	"encoding/json"
	"sync"

	"github.com/adobe/dcxsync/dcxerrors"
)

// ComponentEntry records one component's last confirmed upload.
type ComponentEntry struct {
	ETag       string `json:"etag"`
	Length     int64  `json:"length"`
	SourcePath string `json:"sourcePath"`
	Version    string `json:"version,omitempty"`
	// Digest is the content digest of the bytes actually uploaded,
	// recomputable later to verify the local asset wasn't corrupted
	// between the upload and a subsequent resume (spec.md §4.6).
	Digest string `json:"digest,omitempty"`
}

// document is the exact wire shape from spec.md §6.
type document struct {
	CompositeHref     string                     `json:"compositeHref,omitempty"`
	CompositeCreated  bool                       `json:"compositeCreated"`
	CompositeDeleted  bool                       `json:"compositeDeleted"`
	CompositeEtag     string                     `json:"compositeEtag,omitempty"`
	ManifestEtag      string                     `json:"manifestEtag,omitempty"`
	CurrentBranchEtag string                     `json:"currentBranchEtag,omitempty"`
	Complete          bool                       `json:"complete"`
	Components        map[string]ComponentEntry  `json:"components"`
}

// persister is the narrow dependency journal has on localstore: read and
// atomically write the journal file's bytes.
type persister interface {
	ReadManifest(rel string) ([]byte, error)
	WriteManifest(rel string, data []byte, finalWrite bool) error
}

// Journal is a synchronised, disk-backed push journal. Every mutating
// method persists the full document before returning, so a crash mid-push
// always leaves a consistent, resumable journal on disk (spec.md §4.6).
type Journal struct {
	mu    sync.Mutex
	store persister
	path  string
	doc   document
}

// Open loads an existing journal from store at path, or starts a fresh one
// if none exists yet.
func Open(store persister, path string) (*Journal, error) {
	j := &Journal{store: store, path: path, doc: document{Components: map[string]ComponentEntry{}}}
	data, err := store.ReadManifest(path)
	if err != nil {
		if dcxerrors.Is(err, dcxerrors.FileDoesNotExist) {
			return j, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return j, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidJournal, err, "parsing push journal")
	}
	if doc.Components == nil {
		doc.Components = map[string]ComponentEntry{}
	}
	j.doc = doc
	return j, nil
}

func (j *Journal) persist() error {
	data, err := json.Marshal(j.doc)
	if err != nil {
		return dcxerrors.Wrap(dcxerrors.InvalidJournal, err, "marshalling push journal")
	}
	return j.store.WriteManifest(j.path, data, false)
}

// CompositeHref, CompositeCreated, CompositeDeleted, ManifestEtag,
// CurrentBranchEtag, and Complete report the journal's top-level state.
func (j *Journal) CompositeHref() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.CompositeHref
}

func (j *Journal) CompositeCreated() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.CompositeCreated
}

func (j *Journal) CompositeDeleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.CompositeDeleted
}

func (j *Journal) ManifestEtag() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.ManifestEtag
}

func (j *Journal) CurrentBranchEtag() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.CurrentBranchEtag
}

func (j *Journal) Complete() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc.Complete
}

// SetCurrentBranchEtag records the etag of the committed manifest this push
// is based on (step 2 of spec.md §4.7).
func (j *Journal) SetCurrentBranchEtag(etag string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc.CurrentBranchEtag = etag
	return j.persist()
}

// MarkCompositeCreated records that the composite was created on the server
// during this push (step 3 of spec.md §4.7).
func (j *Journal) MarkCompositeCreated(href string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc.CompositeHref = href
	j.doc.CompositeCreated = true
	return j.persist()
}

// MarkCompositeDeleted records that a PendingDelete composite was
// successfully deleted on the server (step 4 of spec.md §4.7).
func (j *Journal) MarkCompositeDeleted() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc.CompositeDeleted = true
	return j.persist()
}

// RecordComponentUpload records a confirmed component upload. Called
// immediately after the network call returns success, before the next
// upload starts, so journal writes are strictly ordered (spec.md §5).
func (j *Journal) RecordComponentUpload(componentID string, entry ComponentEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc.Components[componentID] = entry
	return j.persist()
}

// GetUploadedComponent returns the recorded upload for componentID if its
// sourcePath still matches candidateSourcePath — a mismatch means the local
// file was replaced since the last push attempt, so the entry no longer
// applies and must be treated as a miss (spec.md §4.6).
func (j *Journal) GetUploadedComponent(componentID, candidateSourcePath string) (ComponentEntry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.doc.Components[componentID]
	if !ok || entry.SourcePath != candidateSourcePath {
		return ComponentEntry{}, false
	}
	return entry, true
}

// RecordManifestUpload records the server etag of the updated manifest
// after a successful upload and marks the journal complete (step 7 of
// spec.md §4.7).
func (j *Journal) RecordManifestUpload(etag string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc.ManifestEtag = etag
	j.doc.Complete = true
	return j.persist()
}

// Reset clears the journal back to an empty state and persists it,
// starting a fresh push cycle.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc = document{Components: map[string]ComponentEntry{}}
	return j.persist()
}
