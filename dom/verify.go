package dom

import "github.com/adobe/dcxsync/pathutil"

// Verify walks the whole manifest checking the invariants from spec.md §3
// and returns every violation found, rather than stopping at the first one,
// so a caller can report (or repair) all of them at once.
func (m *Manifest) Verify() []Finding {
	var findings []Finding

	seenIDs := map[string]struct{}{}
	seenPaths := map[string]string{} // absolute path -> id that claims it

	for id, n := range m.nodes {
		if id == RootID {
			continue
		}
		if _, dup := seenIDs[id]; dup {
			findings = append(findings, Finding{Rule: "unique-id", Detail: "duplicate node id", ID: id})
		}
		seenIDs[id] = struct{}{}

		if n.Path != "" {
			if err := pathutil.ValidateSegment(n.Path); err != nil {
				findings = append(findings, Finding{Rule: "valid-path-segment", Detail: err.Error(), ID: id})
			}
		}

		parentID, ok := m.parents[id]
		if !ok {
			findings = append(findings, Finding{Rule: "parent-consistency", Detail: "node has no recorded parent", ID: id})
		} else if _, ok := m.nodes[parentID]; !ok {
			findings = append(findings, Finding{Rule: "parent-consistency", Detail: "node's parent does not exist", ID: id})
		}

		if p, ok := m.AbsolutePath(id); ok {
			if owner, dup := seenPaths[p]; dup && owner != id {
				findings = append(findings, Finding{Rule: "unique-path", Detail: "duplicate absolute path: " + p, ID: id})
			}
			seenPaths[p] = id
		}
	}

	for id, c := range m.components {
		if c.State == StateCommittedDelete {
			continue
		}
		if _, dup := seenIDs[id]; dup {
			findings = append(findings, Finding{Rule: "unique-id", Detail: "duplicate component id", ID: id})
		}
		seenIDs[id] = struct{}{}

		if err := pathutil.ValidateSegment(c.Path); err != nil {
			findings = append(findings, Finding{Rule: "valid-path-segment", Detail: err.Error(), ID: id})
		}

		parentID, ok := m.parents[id]
		if !ok {
			findings = append(findings, Finding{Rule: "parent-consistency", Detail: "component has no recorded parent", ID: id})
		} else if _, ok := m.nodes[parentID]; !ok {
			findings = append(findings, Finding{Rule: "parent-consistency", Detail: "component's parent does not exist", ID: id})
		}

		if p, ok := m.AbsolutePath(id); ok {
			if owner, dup := seenPaths[p]; dup && owner != id {
				findings = append(findings, Finding{Rule: "unique-path", Detail: "duplicate absolute path: " + p, ID: id})
			}
			seenPaths[p] = id
		}
	}

	// Every node's Children/ComponentIDs entries must reference ids that
	// still exist and claim that node as their parent.
	for id, n := range m.nodes {
		for _, childID := range n.Children {
			if _, ok := m.nodes[childID]; !ok {
				findings = append(findings, Finding{Rule: "child-consistency", Detail: "child node does not exist", ID: childID})
				continue
			}
			if m.parents[childID] != id {
				findings = append(findings, Finding{Rule: "child-consistency", Detail: "child's parent pointer disagrees with parent's child list", ID: childID})
			}
		}
		for _, compID := range n.ComponentIDs {
			if _, ok := m.components[compID]; !ok {
				findings = append(findings, Finding{Rule: "child-consistency", Detail: "component does not exist", ID: compID})
				continue
			}
			if m.parents[compID] != id {
				findings = append(findings, Finding{Rule: "child-consistency", Detail: "component's parent pointer disagrees with parent's component list", ID: compID})
			}
		}
	}

	return findings
}
