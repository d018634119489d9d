package dom

import (
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/pathutil"
)

// checkPendingDelete enforces invariant 5: compositeState == PendingDelete
// forbids further mutation except reset.
func (m *Manifest) checkPendingDelete() error {
	if m.compositeState == StatePendingDelete {
		return dcxerrors.New(dcxerrors.InvalidManifest, "composite is pending delete; only reset is allowed")
	}
	return nil
}

// pathCollision scans every node and component in the manifest for one
// whose absolute path equals candidate, other than excludeID. Manifests in
// this domain are small documents, not arbitrarily large trees, so a linear
// scan here is simpler and more obviously correct than maintaining a second
// reverse index.
func (m *Manifest) pathCollision(candidate, excludeID string) bool {
	if candidate == "" {
		return false
	}
	for id := range m.nodes {
		if id == RootID || id == excludeID {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == candidate {
			return true
		}
	}
	for id, c := range m.components {
		if id == excludeID || c.State == StateCommittedDelete {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == candidate {
			return true
		}
	}
	return false
}

func (m *Manifest) candidatePath(parentID, segment string) (string, error) {
	if segment == "" {
		parentPath, ok := m.AbsolutePath(parentID)
		if !ok {
			return "", errUnknownID(parentID)
		}
		return parentPath, nil
	}
	if err := pathutil.ValidateSegment(segment); err != nil {
		return "", err
	}
	parentPath, ok := m.AbsolutePath(parentID)
	if !ok {
		return "", errUnknownID(parentID)
	}
	return pathutil.JoinAbsolute(parentPath, segment), nil
}

// AddNode creates a new node under parentID.
func (m *Manifest) AddNode(parentID string, spec NodeSpec) (*Node, error) {
	if err := m.checkPendingDelete(); err != nil {
		return nil, err
	}
	parent, ok := m.nodes[parentID]
	if !ok {
		return nil, errUnknownID(parentID)
	}
	candidate, err := m.candidatePath(parentID, spec.Path)
	if err != nil {
		return nil, err
	}
	if spec.Path != "" && m.pathCollision(candidate, "") {
		return nil, dcxerrors.New(dcxerrors.DuplicatePath, "a node or component already exists at this path").
			WithContext("path", candidate)
	}

	id := pathutil.NewID()
	n := &Node{ID: id, Name: spec.Name, Type: spec.Type, Path: spec.Path}
	m.nodes[id] = n
	m.parents[id] = parentID
	parent.Children = append(parent.Children, id)
	m.touch()

	cp := *n
	return &cp, nil
}

// UpdateNode applies mutate to the node, re-validating invariants
// afterward; on failure the node is rolled back to its pre-call state.
func (m *Manifest) UpdateNode(id string, mutate func(*Node)) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	if id == RootID {
		return dcxerrors.New(dcxerrors.UnknownID, "the synthesized root node cannot be updated directly")
	}
	n, ok := m.nodes[id]
	if !ok {
		return errUnknownID(id)
	}
	before := *n
	mutate(n)

	parentID := m.parents[id]
	candidate, err := m.candidatePath(parentID, n.Path)
	if err != nil {
		*n = before
		return err
	}
	if n.Path != "" && m.pathCollision(candidate, id) {
		*n = before
		return dcxerrors.New(dcxerrors.DuplicatePath, "a node or component already exists at this path").
			WithContext("path", candidate)
	}
	m.touch()
	return nil
}

// MoveNode relocates a node to newParentID at the given index among its new
// siblings (or appends if index < 0 or out of range). Moving within the
// same parent is a pure index reorder; moving across parents is a detach
// then attach, verified atomically before either side is touched.
func (m *Manifest) MoveNode(id, newParentID string, index int) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	if id == RootID {
		return dcxerrors.New(dcxerrors.UnknownID, "the synthesized root node cannot be moved")
	}
	n, ok := m.nodes[id]
	if !ok {
		return errUnknownID(id)
	}
	newParent, ok := m.nodes[newParentID]
	if !ok {
		return errUnknownID(newParentID)
	}
	oldParentID := m.parents[id]

	if oldParentID != newParentID {
		candidate, err := m.candidatePath(newParentID, n.Path)
		if err != nil {
			return err
		}
		if n.Path != "" && m.pathCollision(candidate, id) {
			return dcxerrors.New(dcxerrors.DuplicatePath, "a node already exists at this path under the destination").
				WithContext("path", candidate)
		}
	}

	oldParent := m.nodes[oldParentID]
	removeID(&oldParent.Children, id)
	insertID(&newParent.Children, id, index)
	m.parents[id] = newParentID
	m.touch()
	return nil
}

// RemoveNode deletes a node and its entire subtree (children and
// components) from the manifest.
func (m *Manifest) RemoveNode(id string) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	if id == RootID {
		return dcxerrors.New(dcxerrors.UnknownID, "the synthesized root node cannot be removed")
	}
	n, ok := m.nodes[id]
	if !ok {
		return errUnknownID(id)
	}
	m.removeSubtree(n)
	parentID := m.parents[id]
	if parent, ok := m.nodes[parentID]; ok {
		removeID(&parent.Children, id)
	}
	delete(m.parents, id)
	m.touch()
	return nil
}

// removeSubtree deletes n's entire subtree (descendant nodes and
// components) from the manifest's maps and returns a copy of every
// component it removed, so callers that care (InsertChild's subtree
// replacement) can report them; RemoveNode simply discards the result.
func (m *Manifest) removeSubtree(n *Node) []*Component {
	var removed []*Component
	for _, cid := range n.ComponentIDs {
		if c, ok := m.components[cid]; ok {
			cp := *c
			removed = append(removed, &cp)
		}
		delete(m.components, cid)
		delete(m.parents, cid)
		delete(m.assetIDs, cid)
	}
	for _, childID := range n.Children {
		if child, ok := m.nodes[childID]; ok {
			removed = append(removed, m.removeSubtree(child)...)
		}
		delete(m.nodes, childID)
		delete(m.parents, childID)
	}
	delete(m.nodes, n.ID)
	return removed
}

// AddComponent creates a new component under parentID.
func (m *Manifest) AddComponent(parentID string, spec ComponentSpec) (*Component, error) {
	if err := m.checkPendingDelete(); err != nil {
		return nil, err
	}
	parent, ok := m.nodes[parentID]
	if !ok {
		return nil, errUnknownID(parentID)
	}
	if err := pathutil.ValidateSegment(spec.Path); err != nil {
		return nil, err
	}
	parentPath, ok := m.AbsolutePath(parentID)
	if !ok {
		return nil, errUnknownID(parentID)
	}
	candidate := pathutil.JoinAbsolute(parentPath, spec.Path)
	if m.pathCollision(candidate, "") {
		return nil, dcxerrors.New(dcxerrors.DuplicatePath, "a node or component already exists at this path").
			WithContext("path", candidate)
	}

	id := pathutil.NewID()
	c := &Component{
		ID: id, Path: spec.Path, Name: spec.Name, Relationship: spec.Relationship,
		Type: spec.Type, State: StateModified, Length: spec.Length, Width: spec.Width,
		Height: spec.Height, Links: spec.Links,
	}
	m.components[id] = c
	m.parents[id] = parentID
	parent.ComponentIDs = append(parent.ComponentIDs, id)
	m.touch()

	cp := *c
	return &cp, nil
}

// UpdateComponent applies mutate to the component, re-validating path
// uniqueness afterward; rolls back on failure.
func (m *Manifest) UpdateComponent(id string, mutate func(*Component)) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	c, ok := m.components[id]
	if !ok {
		return errUnknownID(id)
	}
	before := *c
	mutate(c)

	if c.Path != before.Path {
		if err := pathutil.ValidateSegment(c.Path); err != nil {
			*c = before
			return err
		}
	}
	parentID := m.parents[id]
	parentPath, ok := m.AbsolutePath(parentID)
	if !ok {
		*c = before
		return errUnknownID(parentID)
	}
	candidate := pathutil.JoinAbsolute(parentPath, c.Path)
	if m.pathCollision(candidate, id) {
		*c = before
		return dcxerrors.New(dcxerrors.DuplicatePath, "a node or component already exists at this path").
			WithContext("path", candidate)
	}
	m.touch()
	return nil
}

// MoveComponent relocates a component to newParentID.
func (m *Manifest) MoveComponent(id, newParentID string, index int) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	c, ok := m.components[id]
	if !ok {
		return errUnknownID(id)
	}
	newParent, ok := m.nodes[newParentID]
	if !ok {
		return errUnknownID(newParentID)
	}
	oldParentID := m.parents[id]

	if oldParentID != newParentID {
		parentPath, ok := m.AbsolutePath(newParentID)
		if !ok {
			return errUnknownID(newParentID)
		}
		candidate := pathutil.JoinAbsolute(parentPath, c.Path)
		if m.pathCollision(candidate, id) {
			return dcxerrors.New(dcxerrors.DuplicatePath, "a component already exists at this path under the destination").
				WithContext("path", candidate)
		}
	}

	oldParent := m.nodes[oldParentID]
	removeID(&oldParent.ComponentIDs, id)
	insertID(&newParent.ComponentIDs, id, index)
	m.parents[id] = newParentID
	m.touch()
	return nil
}

// RemoveComponent deletes a component from the manifest entirely. Callers
// wanting spec.md's soft-delete semantics (PendingDelete -> CommittedDelete
// on server ack) should go through UpdateComponent to change State instead;
// RemoveComponent is the hard delete used once a CommittedDelete component
// is finally dropped from the tree.
func (m *Manifest) RemoveComponent(id string) error {
	if err := m.checkPendingDelete(); err != nil {
		return err
	}
	c, ok := m.components[id]
	if !ok {
		return errUnknownID(id)
	}
	parentID := m.parents[id]
	if parent, ok := m.nodes[parentID]; ok {
		removeID(&parent.ComponentIDs, id)
	}
	delete(m.components, c.ID)
	delete(m.parents, id)
	delete(m.assetIDs, id)
	m.touch()
	return nil
}

// SetCompositeState sets the composite-level state. Only Modified,
// Unmodified, and PendingDelete are settable by clients (spec.md §3);
// CommittedDelete is set by the transfer engine via ForceCompositeState.
func (m *Manifest) SetCompositeState(s State) error {
	if s == StateCommittedDelete {
		return dcxerrors.New(dcxerrors.InvalidManifest, "CommittedDelete is not settable by clients")
	}
	m.compositeState = s
	m.touch()
	return nil
}

// ForceCompositeState sets the composite-level state unconditionally,
// including CommittedDelete. Only the transfer engine calls this: to
// record a server-acknowledged composite delete (spec.md §4.7 step 4), and
// to set the pushed branch back to Unmodified once a push has succeeded;
// regular callers use SetCompositeState.
func (m *Manifest) ForceCompositeState(s State) {
	m.compositeState = s
	m.touch()
}

// SetCompositeHref binds (or rebinds) the composite's server location.
func (m *Manifest) SetCompositeHref(href string) {
	m.compositeHref = href
	m.touch()
}

// SetETag records the manifest's server etag.
func (m *Manifest) SetETag(etag string) {
	m.etag = etag
	m.touch()
}

// SetManifestLinks replaces the manifest-level typed link map.
func (m *Manifest) SetManifestLinks(l Links) {
	m.links = l
	m.touch()
}

// ResetBinding strips all server identity (rel=self links, etags, version,
// composite href), drops any component still marked CommittedDelete, and
// marks every remaining component and the composite Modified (spec.md
// §4.2).
func (m *Manifest) ResetBinding() {
	m.etag = ""
	m.compositeHref = ""
	if m.links != nil {
		delete(m.links, "self")
	}

	for id, c := range m.components {
		if c.State == StateCommittedDelete {
			parentID := m.parents[id]
			if parent, ok := m.nodes[parentID]; ok {
				removeID(&parent.ComponentIDs, id)
			}
			delete(m.components, id)
			delete(m.parents, id)
			delete(m.assetIDs, id)
			continue
		}
		c.ETag = ""
		c.Version = ""
		if c.Links != nil {
			delete(c.Links, "self")
		}
		c.State = StateModified
	}
	m.compositeState = StateModified
	m.touch()
}

// ResetIdentity additionally mints fresh ids for every node, component, and
// the composite itself (spec.md §4.2).
func (m *Manifest) ResetIdentity() {
	m.ResetBinding()

	idMap := map[string]string{RootID: RootID}
	for id := range m.nodes {
		if id == RootID {
			continue
		}
		idMap[id] = pathutil.NewID()
	}
	compIDMap := map[string]string{}
	for id := range m.components {
		compIDMap[id] = pathutil.NewID()
	}

	newNodes := make(map[string]*Node, len(m.nodes))
	newParents := make(map[string]string, len(m.parents))
	for oldID, n := range m.nodes {
		newID := idMap[oldID]
		nn := *n
		nn.ID = newID
		nn.Children = remapIDs(n.Children, idMap)
		nn.ComponentIDs = remapIDs(n.ComponentIDs, compIDMap)
		newNodes[newID] = &nn
	}
	for oldID, parentOldID := range m.parents {
		if newCompID, ok := compIDMap[oldID]; ok {
			newParents[newCompID] = idMap[parentOldID]
			continue
		}
		if newNodeID, ok := idMap[oldID]; ok {
			newParents[newNodeID] = idMap[parentOldID]
		}
	}
	newComponents := make(map[string]*Component, len(m.components))
	for oldID, c := range m.components {
		newID := compIDMap[oldID]
		cc := *c
		cc.ID = newID
		newComponents[newID] = &cc
	}
	newAssetIDs := make(map[string]string, len(m.assetIDs))
	for oldID, assetID := range m.assetIDs {
		if newID, ok := compIDMap[oldID]; ok {
			newAssetIDs[newID] = assetID
		}
	}

	m.nodes = newNodes
	m.components = newComponents
	m.parents = newParents
	m.assetIDs = newAssetIDs
	m.compositeID = pathutil.NewID()
	m.touch()
}

func (m *Manifest) touch() {
	m.dirty = true
	m.modified = timeNow()
}

func remapIDs(ids []string, idMap map[string]string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idMap[id]
	}
	return out
}

func removeID(ids *[]string, id string) {
	for i, v := range *ids {
		if v == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return
		}
	}
}

func insertID(ids *[]string, id string, index int) {
	if index < 0 || index >= len(*ids) {
		*ids = append(*ids, id)
		return
	}
	*ids = append(*ids, "")
	copy((*ids)[index+1:], (*ids)[index:])
	(*ids)[index] = id
}
