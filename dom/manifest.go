package dom

import (
	"time"

	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/pathutil"
)

// Manifest is the arena-backed manifest tree: nodes and components are
// stored in flat maps keyed by id, with a parallel parent index updated
// by every structural mutation, per DESIGN NOTES §9 ("parent pointers
// via indices, not back-references"). A *Manifest satisfies both Branch
// and MutableBranch; callers that should only read (pulled/pushed/base)
// are simply handed the Branch-typed view by the composite container.
type Manifest struct {
	compositeID   string
	name          string
	typ           string
	links         Links
	compositeState State
	etag          string
	compositeHref string
	saveID        string
	formatVersion int
	created       time.Time
	modified      time.Time

	nodes      map[string]*Node
	components map[string]*Component
	parents    map[string]string // node/component id -> parent node id (RootID for top level)
	assetIDs   map[string]string // componentId -> local storage assetId (spec.md §4.5)

	dirty bool
}

// New creates an empty manifest with a synthesized root and no children.
func New(compositeID, name, typ string) *Manifest {
	now := timeNow()
	m := &Manifest{
		compositeID:    compositeID,
		name:           name,
		typ:            typ,
		links:          Links{},
		compositeState: StateUnmodified,
		formatVersion:  3,
		created:        now,
		modified:       now,
		nodes:          map[string]*Node{},
		components:     map[string]*Component{},
		parents:        map[string]string{},
		assetIDs:       map[string]string{},
	}
	m.nodes[RootID] = &Node{ID: RootID}
	return m
}

// Created and Modified return the manifest's creation and last-modified
// timestamps.
func (m *Manifest) Created() time.Time  { return m.created }
func (m *Manifest) Modified() time.Time { return m.modified }

// AssetID returns the local storage assetId bound to a component, if any.
// A component can be bound (isBound, i.e. has a server link) without
// having a local assetId, and vice versa after a minimal pull (spec.md §3
// invariant 6).
func (m *Manifest) AssetID(componentID string) (string, bool) {
	id, ok := m.assetIDs[componentID]
	return id, ok
}

// SetAssetID binds a component to a local storage assetId, or clears the
// binding when assetID is empty.
func (m *Manifest) SetAssetID(componentID, assetID string) {
	if assetID == "" {
		delete(m.assetIDs, componentID)
		return
	}
	m.assetIDs[componentID] = assetID
}

// AssetIDs returns every assetId currently referenced by this manifest,
// satisfying localstore.LiveSetSource for reclamation's live-set union.
func (m *Manifest) AssetIDs() []string {
	out := make([]string, 0, len(m.assetIDs))
	for _, id := range m.assetIDs {
		out = append(out, id)
	}
	return out
}

// AssetIDMap returns a copy of the full componentId -> assetId map, used
// when serializing the manifest's local subtree.
func (m *Manifest) AssetIDMap() map[string]string {
	out := make(map[string]string, len(m.assetIDs))
	for k, v := range m.assetIDs {
		out[k] = v
	}
	return out
}

// ComponentETags returns the server etag of every bound component in this
// manifest, keyed by componentId, skipping CommittedDelete entries and
// components with no etag yet. Used by localstore.ReconcilePulled (spec.md
// §4.5) to find an existing local copy of a component a pull just fetched.
func (m *Manifest) ComponentETags() map[string]string {
	out := make(map[string]string, len(m.components))
	for id, c := range m.components {
		if c.State == StateCommittedDelete || c.ETag == "" {
			continue
		}
		out[id] = c.ETag
	}
	return out
}

// CompositeID returns the manifest's owning composite id.
func (m *Manifest) CompositeID() string { return m.compositeID }

// Name returns the manifest's name.
func (m *Manifest) Name() string { return m.name }

// Type returns the manifest's MIME type.
func (m *Manifest) Type() string { return m.typ }

// CompositeState returns the composite-level asset state.
func (m *Manifest) CompositeState() State { return m.compositeState }

// ETag returns the manifest's server etag, if bound.
func (m *Manifest) ETag() string { return m.etag }

// CompositeHref returns the composite's server location, if bound.
func (m *Manifest) CompositeHref() string { return m.compositeHref }

// SaveID returns the save-id last regenerated by a commit.
func (m *Manifest) SaveID() string { return m.saveID }

// ManifestLinks returns the manifest-level typed link map.
func (m *Manifest) ManifestLinks() Links { return m.links }

// Dirty reports whether the branch has unsaved mutations.
func (m *Manifest) Dirty() bool { return m.dirty }

// SetSaveID regenerates the save-id, as commitChanges does (spec.md §4.4).
func (m *Manifest) SetSaveID(id string) { m.saveID = id }

// MarkClean clears the dirty flag after a successful commit.
func (m *Manifest) MarkClean() { m.dirty = false }

// GetNode looks up a node by id. RootID always resolves, with Name/Type
// drawn from the manifest's top-level fields (spec.md §4.3).
func (m *Manifest) GetNode(id string) (*Node, bool) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, false
	}
	if id == RootID {
		cp := *n
		cp.Name = m.name
		cp.Type = m.typ
		return &cp, true
	}
	cp := *n
	return &cp, true
}

// GetComponent looks up a component by id. Unlike Components and
// AllComponents, it also returns a component whose state is
// CommittedDelete: invariant 4 applies to enumeration, not to the targeted
// id lookup the engine needs internally.
func (m *Manifest) GetComponent(id string) (*Component, bool) {
	c, ok := m.components[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Parent returns the parent node id of a node or component id.
func (m *Manifest) Parent(id string) (string, bool) {
	if id == RootID {
		return "", false
	}
	p, ok := m.parents[id]
	return p, ok
}

// Children returns the direct child nodes of nodeID, in order.
func (m *Manifest) Children(nodeID string) []*Node {
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		if child, ok := m.GetNode(id); ok {
			out = append(out, child)
		}
	}
	return out
}

// Components returns the components directly under nodeID, in order,
// excluding any in state CommittedDelete (invariant 4).
func (m *Manifest) Components(nodeID string) []*Component {
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil
	}
	out := make([]*Component, 0, len(n.ComponentIDs))
	for _, id := range n.ComponentIDs {
		c, ok := m.components[id]
		if !ok || c.State == StateCommittedDelete {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// AllNodes returns every node in the manifest except the synthesized root.
func (m *Manifest) AllNodes() []*Node {
	out := make([]*Node, 0, len(m.nodes))
	for id, n := range m.nodes {
		if id == RootID {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// AllComponents returns every component in the manifest not in state
// CommittedDelete (invariant 4).
func (m *Manifest) AllComponents() []*Component {
	out := make([]*Component, 0, len(m.components))
	for _, c := range m.components {
		if c.State == StateCommittedDelete {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// AbsolutePath computes the '/'-joined absolute path of a node or component
// id by walking parent pointers to the root, skipping transparent
// segments along the way.
func (m *Manifest) AbsolutePath(id string) (string, bool) {
	var segments []string

	if c, ok := m.components[id]; ok {
		segments = append(segments, c.Path)
		id = m.parents[id]
	} else if _, ok := m.nodes[id]; !ok {
		return "", false
	}

	for id != RootID {
		n, ok := m.nodes[id]
		if !ok {
			return "", false
		}
		segments = append(segments, n.Path)
		parent, ok := m.parents[id]
		if !ok {
			return "", false
		}
		id = parent
	}

	// segments were collected leaf-to-root; reverse to root-to-leaf.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return pathutil.JoinAbsolute(segments...), true
}

// NodeByPath resolves a node by absolute path.
func (m *Manifest) NodeByPath(absPath string) (*Node, bool) {
	if absPath == "" {
		return m.GetNode(RootID)
	}
	for id := range m.nodes {
		if id == RootID {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == absPath {
			return m.GetNode(id)
		}
	}
	return nil, false
}

// ComponentByPath resolves a component by absolute path.
func (m *Manifest) ComponentByPath(absPath string) (*Component, bool) {
	for id, c := range m.components {
		if c.State == StateCommittedDelete {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == absPath {
			return m.GetComponent(id)
		}
	}
	return nil, false
}

func (m *Manifest) nodeExists(id string) bool {
	_, ok := m.nodes[id]
	return ok
}

func (m *Manifest) componentExists(id string) bool {
	_, ok := m.components[id]
	return ok
}

// errUnknownID builds the standard lookup-failure error.
func errUnknownID(id string) error {
	return dcxerrors.New(dcxerrors.UnknownID, "no node or component with this id").WithContext("id", id)
}
