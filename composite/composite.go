// Package composite owns the four-branch container (current, pulled,
// pushed, base) described in spec.md §4.4: a single local path on disk, the
// per-composite locks that serialise push/pull, and the lifecycle
// operations (commit, accept-push, resolve-pull, discard, reset, reclaim)
// that move branches between slots.
package composite

import (
	"sync"
	"time"

	events "github.com/docker/go-events"

	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/journal"
	"github.com/adobe/dcxsync/localstore"
	"github.com/adobe/dcxsync/manifest"
	"github.com/adobe/dcxsync/pathutil"
)

// Event actions published to the injected sink, mirroring the teacher's
// notifications package shape (an action string plus a target).
const (
	EventActionOpened       = "opened"
	EventActionCommitted    = "committed"
	EventActionPushAccepted = "push_accepted"
	EventActionPullResolved = "pull_resolved"
	EventActionPullFetched  = "pull_fetched"
	EventActionPushed       = "pushed"
)

// Event is the lifecycle notification published on the composite's sink.
type Event struct {
	Action      string
	CompositeID string
	Timestamp   time.Time
}

// Composite is the local, on-disk home of one composite's four branch
// revisions, plus the synchronisation state the transfer engine needs.
type Composite struct {
	store *localstore.Store
	sink  events.Sink

	mu      sync.Mutex // guards the branch slots below
	current *dom.Manifest
	pulled  *dom.Manifest // nil if absent
	pushed  *dom.Manifest // nil if absent
	base    *dom.Manifest // nil if absent

	pushMu sync.Mutex // at most one in-flight push (spec.md §4.8)
	pullMu sync.Mutex // at most one in-flight pull

	inflightMu    sync.Mutex
	inflightFiles map[string]struct{} // paths being copied/moved into components/
}

func newComposite(store *localstore.Store, sink events.Sink) *Composite {
	return &Composite{
		store:         store,
		sink:          sink,
		inflightFiles: map[string]struct{}{},
	}
}

func (c *Composite) publish(action string) {
	if c.sink == nil {
		return
	}
	id := ""
	if c.current != nil {
		id = c.current.CompositeID()
	}
	c.sink.Write(Event{Action: action, CompositeID: id, Timestamp: time.Now()})
}

// NewEmpty creates a brand-new, unbound composite at localPath: no href, no
// etag, state Unmodified. It creates the directory skeleton and commits the
// empty manifest to it before returning (spec.md §3 "Created by one of").
func NewEmpty(localPath, name, typ string, sink events.Sink) (*Composite, error) {
	store, err := localstore.Open(localPath)
	if err != nil {
		return nil, err
	}
	c := newComposite(store, sink)
	c.current = dom.New(pathutil.NewID(), name, typ)
	if err := c.commitLocked(); err != nil {
		return nil, err
	}
	c.publish(EventActionOpened)
	return c, nil
}

// BindToRemoteHref creates a composite already bound to a server location,
// e.g. after a server-side create outside this client (spec.md §3).
func BindToRemoteHref(localPath, compositeID, name, typ, href, etag string, sink events.Sink) (*Composite, error) {
	store, err := localstore.Open(localPath)
	if err != nil {
		return nil, err
	}
	c := newComposite(store, sink)
	c.current = dom.New(compositeID, name, typ)
	c.current.SetCompositeHref(href)
	c.current.SetETag(etag)
	if err := c.commitLocked(); err != nil {
		return nil, err
	}
	c.publish(EventActionOpened)
	return c, nil
}

// OpenFromLocalPath reopens a composite previously written to localPath,
// reading the committed manifest and lazily attaching base/pulled/pushed
// when present on disk.
func OpenFromLocalPath(localPath string, sink events.Sink) (*Composite, error) {
	store, err := localstore.Open(localPath)
	if err != nil {
		return nil, err
	}
	c := newComposite(store, sink)

	data, err := store.ReadManifest(store.ManifestPath())
	if err != nil {
		return nil, err
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	c.current = dom.FromDocument(doc)

	if m, err := c.tryLoad(store.BaseManifestPath()); err != nil {
		return nil, err
	} else {
		c.base = m
	}
	if m, err := c.tryLoad(store.PullManifestPath()); err != nil {
		return nil, err
	} else {
		c.pulled = m
	}
	if m, err := c.tryLoad(store.PushManifestPath()); err != nil {
		return nil, err
	} else {
		c.pushed = m
	}

	c.publish(EventActionOpened)
	return c, nil
}

func (c *Composite) tryLoad(rel string) (*dom.Manifest, error) {
	data, err := c.store.ReadManifest(rel)
	if err != nil {
		if dcxerrors.Is(err, dcxerrors.FileDoesNotExist) {
			return nil, nil
		}
		return nil, err
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	return dom.FromDocument(doc), nil
}

// SetPulled installs pulled as the composite's pulled branch, persisting it
// to pull/manifest (spec.md §4.8 step 4: "persist the pulled manifest at
// pull/manifest and expose composite.pulled"). Replaces any existing
// pulled branch.
func (c *Composite) SetPulled(pulled *dom.Manifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeBranch(c.store.PullManifestPath(), pulled, false); err != nil {
		return err
	}
	c.pulled = pulled
	c.publish(EventActionPullFetched)
	return nil
}

// SetPushed installs pushed as the composite's pushed branch, persisting it
// to push/manifest (spec.md §4.7 step 7). The transfer engine calls this
// once every component and the manifest itself have been uploaded
// successfully; AcceptPush later folds this branch into current.
func (c *Composite) SetPushed(pushed *dom.Manifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeBranch(c.store.PushManifestPath(), pushed, false); err != nil {
		return err
	}
	c.pushed = pushed
	c.publish(EventActionPushed)
	return nil
}

// MutableBranchByName returns the concrete, mutable manifest backing one of
// the four named branches ("current", "pulled", "pushed", "base"), for use
// by transfer.DownloadComponents (spec.md §4.8), which needs to update a
// branch's local-storage asset-id map without otherwise touching its
// structure. Returns MissingManifest if the requested branch is absent.
func (c *Composite) MutableBranchByName(name string) (*dom.Manifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var m *dom.Manifest
	switch name {
	case "current":
		m = c.current
	case "pulled":
		m = c.pulled
	case "pushed":
		m = c.pushed
	case "base":
		m = c.base
	default:
		return nil, dcxerrors.New(dcxerrors.UnknownComposite, "unknown branch name").WithContext("branch", name)
	}
	if m == nil {
		return nil, dcxerrors.New(dcxerrors.MissingManifest, "branch is absent").WithContext("branch", name)
	}
	return m, nil
}

// AllBranches returns every present branch slot (current always included),
// used by the transfer engine to build a pull's reconciliation candidate
// list (spec.md §4.5).
func (c *Composite) AllBranches() []*dom.Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []*dom.Manifest{c.current}
	for _, b := range []*dom.Manifest{c.pulled, c.pushed, c.base} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Current, Pulled, Pushed, Base return the current branch slots. Pulled,
// Pushed and Base may be nil when absent.
func (c *Composite) Current() dom.MutableBranch { c.mu.Lock(); defer c.mu.Unlock(); return c.current }
func (c *Composite) Pulled() dom.Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pulled == nil {
		return nil
	}
	return c.pulled
}
func (c *Composite) Pushed() dom.Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushed == nil {
		return nil
	}
	return c.pushed
}
func (c *Composite) Base() dom.Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		return nil
	}
	return c.base
}

// Store exposes the underlying local storage handle for the transfer
// engine's component reads/writes.
func (c *Composite) Store() *localstore.Store { return c.store }

// LockPush/UnlockPush and LockPull/UnlockPull enforce spec.md §4.8's "at
// most one in-flight push and one in-flight pull" per composite.
func (c *Composite) LockPush()   { c.pushMu.Lock() }
func (c *Composite) UnlockPush() { c.pushMu.Unlock() }
func (c *Composite) LockPull()   { c.pullMu.Lock() }
func (c *Composite) UnlockPull() { c.pullMu.Unlock() }

// MarkFileInflight/UnmarkFileInflight track paths currently being copied or
// moved into components/, so RemoveUnusedLocalFiles never races with an
// in-progress import (spec.md §4.4).
func (c *Composite) MarkFileInflight(path string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	c.inflightFiles[path] = struct{}{}
}

func (c *Composite) UnmarkFileInflight(path string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	delete(c.inflightFiles, path)
}

func (c *Composite) inflightSnapshot() map[string]struct{} {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	out := make(map[string]struct{}, len(c.inflightFiles))
	for k := range c.inflightFiles {
		out[k] = struct{}{}
	}
	return out
}

// CommitChanges atomically writes current's manifest to the committed path,
// regenerating the save id.
func (c *Composite) CommitChanges() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

func (c *Composite) commitLocked() error {
	c.current.SetSaveID(pathutil.NewID())
	if err := c.writeBranch(c.store.ManifestPath(), c.current, true); err != nil {
		return err
	}
	c.current.MarkClean()
	c.publish(EventActionCommitted)
	return nil
}

func (c *Composite) writeBranch(rel string, m *dom.Manifest, finalWrite bool) error {
	data, err := manifest.Serialize(m.ToDocument(), manifest.FlavorLocal)
	if err != nil {
		return err
	}
	return c.store.WriteManifest(rel, data, finalWrite)
}

// AcceptPush requires a complete push journal; it updates current in place
// with the pushed manifest's server fields, replaces base with pushed, and
// deletes the journal and pushed artifacts. No-op if there is no pushed
// branch (spec.md §4.4).
func (c *Composite) AcceptPush(j *journal.Journal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pushed == nil {
		return nil
	}
	if !j.Complete() {
		return dcxerrors.New(dcxerrors.IncompleteJournal, "cannot accept push with an incomplete journal")
	}

	c.current.SetCompositeHref(c.pushed.CompositeHref())
	c.current.SetETag(c.pushed.ETag())
	c.current.SetManifestLinks(c.pushed.ManifestLinks())
	if err := c.current.SetCompositeState(c.pushed.CompositeState()); err != nil {
		return err
	}
	for _, comp := range c.pushed.AllComponents() {
		if err := c.current.UpdateComponent(comp.ID, func(dst *dom.Component) {
			dst.ETag = comp.ETag
			dst.State = comp.State
			dst.Links = comp.Links
		}); err != nil {
			return err
		}
	}

	if err := c.commitLocked(); err != nil {
		return err
	}

	c.base = c.pushed
	c.pushed = nil

	if err := c.removeArtifact(c.store.PushManifestPath()); err != nil {
		return err
	}
	if err := j.Reset(); err != nil {
		return err
	}
	if err := c.removeArtifact(c.store.JournalPath()); err != nil {
		return err
	}
	if err := c.writeBranch(c.store.BaseManifestPath(), c.base, false); err != nil {
		return err
	}

	c.publish(EventActionPushAccepted)
	return nil
}

// ResolvePull promotes merged (which must share DOM lineage with pulled or
// current) to the new current, commits it, replaces base with pulled, and
// discards the pulled artifacts (spec.md §4.4).
func (c *Composite) ResolvePull(merged *dom.Manifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pulled == nil {
		return dcxerrors.New(dcxerrors.MissingManifest, "no pulled branch to resolve against")
	}
	if merged.CompositeID() != c.pulled.CompositeID() && merged.CompositeID() != c.current.CompositeID() {
		return dcxerrors.New(dcxerrors.UnknownComposite, "merged branch does not share lineage with pulled or current")
	}

	c.current = merged
	if err := c.commitLocked(); err != nil {
		return err
	}

	c.base = c.pulled
	c.pulled = nil

	if err := c.removeArtifact(c.store.PullManifestPath()); err != nil {
		return err
	}
	if err := c.writeBranch(c.store.BaseManifestPath(), c.base, false); err != nil {
		return err
	}

	c.publish(EventActionPullResolved)
	return nil
}

// DiscardPulled and DiscardPushed remove the respective on-disk artifacts;
// both are no-ops when the slot is already empty.
func (c *Composite) DiscardPulled() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pulled == nil {
		return nil
	}
	c.pulled = nil
	return c.removeArtifact(c.store.PullManifestPath())
}

func (c *Composite) DiscardPushed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushed == nil {
		return nil
	}
	c.pushed = nil
	if err := c.removeArtifact(c.store.JournalPath()); err != nil {
		return err
	}
	return c.removeArtifact(c.store.PushManifestPath())
}

// ResetBinding and ResetIdentity defer to dom's versions on current, and
// additionally purge base/pulled/pushed and the journal (spec.md §4.4).
func (c *Composite) ResetBinding() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.ResetBinding()
	return c.purgeOtherBranches()
}

func (c *Composite) ResetIdentity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.ResetIdentity()
	return c.purgeOtherBranches()
}

func (c *Composite) purgeOtherBranches() error {
	c.base, c.pulled, c.pushed = nil, nil, nil
	for _, rel := range []string{c.store.BaseManifestPath(), c.store.PullManifestPath(), c.store.PushManifestPath(), c.store.JournalPath()} {
		if err := c.removeArtifact(rel); err != nil {
			return err
		}
	}
	return c.commitLocked()
}

// RemoveLocalStorage deletes the composite's entire local directory.
func (c *Composite) RemoveLocalStorage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveAll()
}

// RemoveUnusedLocalFiles reclaims any component asset not referenced by
// current, pulled, pushed, or base, and not in the inflight set
// (spec.md §4.5).
func (c *Composite) RemoveUnusedLocalFiles() (int64, error) {
	c.mu.Lock()
	branches := make([]localstore.LiveSetSource, 0, 4)
	branches = append(branches, c.current)
	for _, b := range []*dom.Manifest{c.pulled, c.pushed, c.base} {
		if b != nil {
			branches = append(branches, b)
		}
	}
	c.mu.Unlock()

	return c.store.RemoveUnusedLocalFiles(branches, c.inflightSnapshot())
}

func (c *Composite) removeArtifact(rel string) error {
	return c.store.RemoveManifest(rel)
}

// RemoveLocalFilesForComponentsWithIDs deletes the local asset for each
// requested component id, skipping (and reporting) any that are currently
// Modified in current, and always returning the total bytes freed
// (spec.md §4.5).
func (c *Composite) RemoveLocalFilesForComponentsWithIDs(ids []string) (bytesFreed int64, errs []error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		comp, ok := c.current.GetComponent(id)
		if ok && comp.State == dom.StateModified {
			errs = append(errs, dcxerrors.New(dcxerrors.CannotRemoveModifiedComponent, "component has local modifications").WithContext("id", id))
			continue
		}
		assetID, ok := c.current.AssetID(id)
		if !ok {
			continue
		}
		ext := ""
		if comp != nil {
			ext = pathutil.Ext(comp.Path)
		}
		freed, err := c.store.RemoveComponentAsset(assetID, ext)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bytesFreed += freed
		c.current.SetAssetID(id, "")
	}
	return bytesFreed, errs
}
