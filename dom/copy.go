package dom

import (
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/pathutil"
)

// InsertOptions configures InsertChild's cross-branch copy semantics
// (spec.md §4.3, DESIGN NOTES §9).
type InsertOptions struct {
	// ForceNewIDs mints fresh ids for every node and component copied from
	// src, even when src and the destination are the same composite. When
	// false, ids are reused as-is when src and dest share a CompositeID,
	// which lets round-tripping a subtree out and back in preserve
	// identity; reuse across two different composites is never attempted
	// regardless of this flag, since doing so would let one composite's
	// component ids leak into another's id space.
	ForceNewIDs bool
	// Path overrides the path segment of the copied subtree root under its
	// new parent. Empty leaves the source root's own Path.
	Path string
}

// InsertChild deep-copies the subtree rooted at subtreeRootID out of src and
// attaches the copy under destParentID in m. When ids are reused (same
// composite, ForceNewIDs false) and subtreeRootID already names a node in m
// at exactly the destination path the copy would land at, this is a
// subtree replacement: the existing subtree is torn down first and its
// components reported as removed. Any other id already owned by m, or any
// destination path collision, is rejected atomically before m is touched
// (spec.md §4.2/§4.3).
func (m *Manifest) InsertChild(src Branch, subtreeRootID, destParentID string, opts InsertOptions) (added, removed []*Component, err error) {
	if err := m.checkPendingDelete(); err != nil {
		return nil, nil, err
	}
	if _, ok := m.nodes[destParentID]; !ok {
		return nil, nil, errUnknownID(destParentID)
	}
	srcNode, ok := src.GetNode(subtreeRootID)
	if !ok {
		return nil, nil, errUnknownID(subtreeRootID)
	}

	reuseIDs := src.CompositeID() == m.compositeID && !opts.ForceNewIDs

	rootPath := opts.Path
	if rootPath == "" {
		rootPath = srcNode.Path
	}
	if rootPath != "" {
		if err := pathutil.ValidateSegment(rootPath); err != nil {
			return nil, nil, err
		}
	}
	destParentPath, _ := m.AbsolutePath(destParentID)
	rootDestPath := pathutil.JoinAbsolute(destParentPath, rootPath)

	// oldSubtreeIDs collects every node/component id already owned by the
	// existing node this copy is about to replace, if any, so
	// preflightCopy can tell "this id is fine, it belongs to the subtree
	// being overwritten" apart from "this id collides with something else
	// entirely" (spec.md §4.2: duplicate-id outcomes are rejected
	// atomically, except when the copy legitimately replaces an existing
	// subtree at the same id and path).
	var oldRoot *Node
	oldSubtreeIDs := map[string]struct{}{}
	if reuseIDs {
		if existing, ok := m.nodes[subtreeRootID]; ok {
			existingPath, _ := m.AbsolutePath(subtreeRootID)
			if existingPath != rootDestPath {
				return nil, nil, dcxerrors.New(dcxerrors.DuplicateID, "a different node already has this id").
					WithContext("id", subtreeRootID).
					WithContext("path", existingPath)
			}
			oldRoot = existing
			collectSubtreeIDs(existing, m.nodes, oldSubtreeIDs)
		}
	}

	if err := m.preflightCopy(src, subtreeRootID, rootDestPath, reuseIDs, oldSubtreeIDs, map[string]struct{}{}); err != nil {
		return nil, nil, err
	}

	var removed_ []*Component
	if oldRoot != nil {
		removed_ = m.removeSubtree(oldRoot)
		if parent, ok := m.nodes[m.parents[subtreeRootID]]; ok {
			removeID(&parent.Children, subtreeRootID)
		}
		delete(m.parents, subtreeRootID)
	}

	var added_ []*Component
	var build func(srcID, destParentNewID, path string) string
	build = func(srcID, destParentNewID, path string) string {
		n, _ := src.GetNode(srcID)
		newID := srcID
		if !reuseIDs {
			newID = pathutil.NewID()
		}

		nn := &Node{ID: newID, Name: n.Name, Type: n.Type, Path: path}
		m.nodes[newID] = nn
		m.parents[newID] = destParentNewID
		parent := m.nodes[destParentNewID]
		parent.Children = append(parent.Children, newID)

		for _, compID := range n.ComponentIDs {
			c, ok := src.GetComponent(compID)
			if !ok {
				continue
			}
			newCompID := compID
			if !reuseIDs {
				newCompID = pathutil.NewID()
			}
			cc := &Component{
				ID: newCompID, Path: c.Path, Name: c.Name, Relationship: c.Relationship,
				Type: c.Type, State: c.State, ETag: c.ETag, Version: c.Version,
				Length: c.Length, Width: c.Width, Height: c.Height, Links: c.Links,
			}
			m.components[newCompID] = cc
			m.parents[newCompID] = newID
			nn.ComponentIDs = append(nn.ComponentIDs, newCompID)

			cp := *cc
			added_ = append(added_, &cp)
		}

		for _, childID := range n.Children {
			child, ok := src.GetNode(childID)
			if !ok {
				continue
			}
			build(childID, newID, child.Path)
		}
		return newID
	}

	build(subtreeRootID, destParentID, rootPath)
	m.touch()
	return added_, removed_, nil
}

// collectSubtreeIDs gathers n's own id plus every descendant node and
// component id reachable from it, as recorded in nodes, into out.
func collectSubtreeIDs(n *Node, nodes map[string]*Node, out map[string]struct{}) {
	out[n.ID] = struct{}{}
	for _, compID := range n.ComponentIDs {
		out[compID] = struct{}{}
	}
	for _, childID := range n.Children {
		if child, ok := nodes[childID]; ok {
			collectSubtreeIDs(child, nodes, out)
		}
	}
}

// preflightCopy walks the source subtree, computing every destination path
// it would land at, and errors on the first rejected outcome spec.md §4.2
// names: a different id already occupying the destination path
// ("duplicate-path"), or — when ids are being reused because src and m are
// the same composite — this id already belonging to some node or component
// outside the subtree being replaced ("duplicate-id"). oldSubtreeIDs names
// the ids about to be torn down as part of a legitimate subtree replacement,
// and so is exempt from the duplicate-id check.
func (m *Manifest) preflightCopy(src Branch, srcID, destPath string, reuseIDs bool, oldSubtreeIDs, seen map[string]struct{}) error {
	n, ok := src.GetNode(srcID)
	if !ok {
		return errUnknownID(srcID)
	}

	if err := m.checkDuplicateID(srcID, oldSubtreeIDs, reuseIDs); err != nil {
		return err
	}
	if err := m.checkPathSlot(destPath, oldSubtreeIDs, seen); err != nil {
		return err
	}

	for _, compID := range n.ComponentIDs {
		c, ok := src.GetComponent(compID)
		if !ok {
			continue
		}
		compPath := pathutil.JoinAbsolute(destPath, c.Path)
		if err := m.checkDuplicateID(compID, oldSubtreeIDs, reuseIDs); err != nil {
			return err
		}
		if err := m.checkPathSlot(compPath, oldSubtreeIDs, seen); err != nil {
			return err
		}
	}

	for _, childID := range n.Children {
		child, ok := src.GetNode(childID)
		if !ok {
			continue
		}
		childPath := pathutil.JoinAbsolute(destPath, child.Path)
		if err := m.preflightCopy(src, childID, childPath, reuseIDs, oldSubtreeIDs, seen); err != nil {
			return err
		}
	}
	return nil
}

// checkDuplicateID rejects id when it is being reused (reuseIDs) and
// already names a node or component in m that isn't part of the subtree
// this copy is replacing.
func (m *Manifest) checkDuplicateID(id string, oldSubtreeIDs map[string]struct{}, reuseIDs bool) error {
	if !reuseIDs {
		return nil
	}
	if _, exempt := oldSubtreeIDs[id]; exempt {
		return nil
	}
	if m.nodeExists(id) || m.componentExists(id) {
		existingPath, _ := m.AbsolutePath(id)
		return dcxerrors.New(dcxerrors.DuplicateID, "a different node or component already has this id").
			WithContext("id", id).
			WithContext("path", existingPath)
	}
	return nil
}

// checkPathSlot rejects destPath if it's already occupied in m by anything
// outside the subtree being replaced, or duplicated by two entries within
// the copied subtree itself. oldSubtreeIDs's members are excluded from the
// collision scan since removeSubtree frees their path slots before build
// runs (see InsertChild).
func (m *Manifest) checkPathSlot(destPath string, oldSubtreeIDs, seen map[string]struct{}) error {
	if m.pathCollisionExcluding(destPath, oldSubtreeIDs) {
		return dcxerrors.New(dcxerrors.DuplicatePath, "copied subtree collides with an existing path").
			WithContext("path", destPath)
	}
	if _, dup := seen[destPath]; dup {
		return dcxerrors.New(dcxerrors.DuplicatePath, "copied subtree has two entries at the same path").
			WithContext("path", destPath)
	}
	seen[destPath] = struct{}{}
	return nil
}

// pathCollisionExcluding is pathCollision generalized to exclude a whole set
// of ids instead of just one, for preflightCopy's subtree-replacement case.
func (m *Manifest) pathCollisionExcluding(candidate string, exclude map[string]struct{}) bool {
	if candidate == "" {
		return false
	}
	for id := range m.nodes {
		if id == RootID {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == candidate {
			return true
		}
	}
	for id, c := range m.components {
		if c.State == StateCommittedDelete {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if p, ok := m.AbsolutePath(id); ok && p == candidate {
			return true
		}
	}
	return false
}
