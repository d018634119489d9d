package composite

import (
	"sort"

	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/manifest"
)

// MergeCurrentIntoPulled builds a candidate merged manifest for ResolvePull
// out of the pulled branch, folding in every subtree of current whose root
// node owns a locally Modified or PendingDelete component: current wins for
// the nodes it touched, pulled wins everywhere else. This is the mechanical
// "current wins" primitive spec.md §8 scenario 4 describes ("construct
// merged branch = pulled + local c1 changes") — picking a result
// component-by-component when current and pulled genuinely conflict is a
// host application's merge UI to build, not this library's (spec.md
// Non-goals: no merge UI).
//
// A locally modified node whose parent no longer exists in pulled (the
// parent itself was deleted server-side) is left out of the merge; the
// caller sees it reported back as skipped so it can fall back to a manual
// resolution for that one node. Two other cases are reported the same way:
// a node that InsertChild rejects (for example on an id or path collision),
// and the root node itself, so components that sit directly under the root
// are not folded in.
func (c *Composite) MergeCurrentIntoPulled() (merged *dom.Manifest, skipped []string, err error) {
	c.mu.Lock()
	pulled, current := c.pulled, c.current
	c.mu.Unlock()

	if pulled == nil {
		return nil, nil, dcxerrors.New(dcxerrors.MissingManifest, "no pulled branch to merge into")
	}

	data, err := manifest.Serialize(pulled.ToDocument(), manifest.FlavorLocal)
	if err != nil {
		return nil, nil, err
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	merged = dom.FromDocument(doc)

	for _, nodeID := range locallyTouchedRoots(current) {
		parentID, ok := current.Parent(nodeID)
		if !ok {
			skipped = append(skipped, nodeID)
			continue
		}
		if _, ok := merged.GetNode(parentID); !ok {
			skipped = append(skipped, nodeID)
			continue
		}
		if _, _, err := merged.InsertChild(current, nodeID, parentID, dom.InsertOptions{}); err != nil {
			skipped = append(skipped, nodeID)
			continue
		}
	}

	return merged, skipped, nil
}

// locallyTouchedRoots returns the outermost node ids in current that
// directly own a Modified or PendingDelete component, i.e. excludes any
// candidate that has another candidate as an ancestor, since InsertChild
// copies a matched node's entire subtree and would otherwise be asked to
// copy the same content twice.
func locallyTouchedRoots(current dom.Branch) []string {
	candidates := map[string]struct{}{}
	for _, comp := range current.AllComponents() {
		if comp.State != dom.StateModified && comp.State != dom.StatePendingDelete {
			continue
		}
		if parentID, ok := current.Parent(comp.ID); ok {
			candidates[parentID] = struct{}{}
		}
	}

	isDescendantOfCandidate := func(id string) bool {
		for {
			parentID, ok := current.Parent(id)
			if !ok {
				return false
			}
			if _, isCandidate := candidates[parentID]; isCandidate {
				return true
			}
			id = parentID
		}
	}

	var roots []string
	for id := range candidates {
		if !isDescendantOfCandidate(id) {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}
