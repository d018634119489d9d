package dom

import (
	"github.com/adobe/dcxsync/manifest"
)

// ToDocument serializes the in-memory tree into the wire document shape
// (manifest/codec.go), preserving the nested children/components layout
// the wire format expects instead of the arena's flat maps.
func (m *Manifest) ToDocument() *manifest.Document {
	doc := &manifest.Document{
		ID:       m.compositeID,
		Name:     m.name,
		Type:     m.typ,
		State:    m.compositeState,
		ETag:     m.etag,
		Created:  m.created,
		Modified: m.modified,
		Links:    copyLinks(m.links),
		Local: &manifest.LocalSubtree{
			Version:                manifest.CurrentFormatVersion,
			SaveID:                 m.saveID,
			LocalStorageAssetIDMap: m.AssetIDMap(),
			CompositeHref:          m.compositeHref,
		},
	}

	root := m.nodes[RootID]
	for _, compID := range root.ComponentIDs {
		if c, ok := m.components[compID]; ok {
			doc.Components = append(doc.Components, componentToDoc(c))
		}
	}
	for _, childID := range root.Children {
		if n, ok := m.nodes[childID]; ok {
			doc.Children = append(doc.Children, m.nodeToDoc(n))
		}
	}
	return doc
}

func (m *Manifest) nodeToDoc(n *Node) *manifest.NodeDoc {
	nd := &manifest.NodeDoc{ID: n.ID, Name: n.Name, Path: n.Path, Type: n.Type}
	for _, compID := range n.ComponentIDs {
		if c, ok := m.components[compID]; ok {
			nd.Components = append(nd.Components, componentToDoc(c))
		}
	}
	for _, childID := range n.Children {
		if child, ok := m.nodes[childID]; ok {
			nd.Children = append(nd.Children, m.nodeToDoc(child))
		}
	}
	return nd
}

func componentToDoc(c *Component) *manifest.ComponentDoc {
	return &manifest.ComponentDoc{
		ID:           c.ID,
		Path:         c.Path,
		Name:         c.Name,
		Relationship: c.Relationship,
		Type:         c.Type,
		State:        c.State,
		ETag:         c.ETag,
		Version:      c.Version,
		Length:       c.Length,
		Width:        c.Width,
		Height:       c.Height,
		Links:        copyLinks(c.Links),
	}
}

// FromDocument builds an in-memory tree from a parsed wire document.
func FromDocument(doc *manifest.Document) *Manifest {
	m := New(doc.ID, doc.Name, doc.Type)
	m.compositeState = doc.State
	m.etag = doc.ETag
	m.links = copyLinks(doc.Links)
	if !doc.Created.IsZero() {
		m.created = doc.Created
	}
	if !doc.Modified.IsZero() {
		m.modified = doc.Modified
	}

	if doc.Local != nil {
		m.saveID = doc.Local.SaveID
		m.compositeHref = doc.Local.CompositeHref
		m.formatVersion = doc.Local.Version
		for compID, assetID := range doc.Local.LocalStorageAssetIDMap {
			m.assetIDs[compID] = assetID
		}
	}

	root := m.nodes[RootID]
	for _, cd := range doc.Components {
		c := componentFromDoc(cd)
		m.components[c.ID] = c
		m.parents[c.ID] = RootID
		root.ComponentIDs = append(root.ComponentIDs, c.ID)
	}
	for _, nd := range doc.Children {
		m.attachNodeFromDoc(nd, RootID)
	}
	return m
}

func (m *Manifest) attachNodeFromDoc(nd *manifest.NodeDoc, parentID string) {
	n := &Node{ID: nd.ID, Name: nd.Name, Type: nd.Type, Path: nd.Path}
	m.nodes[n.ID] = n
	m.parents[n.ID] = parentID
	if parent, ok := m.nodes[parentID]; ok {
		parent.Children = append(parent.Children, n.ID)
	}

	for _, cd := range nd.Components {
		c := componentFromDoc(cd)
		m.components[c.ID] = c
		m.parents[c.ID] = n.ID
		n.ComponentIDs = append(n.ComponentIDs, c.ID)
	}
	for _, child := range nd.Children {
		m.attachNodeFromDoc(child, n.ID)
	}
}

func componentFromDoc(cd *manifest.ComponentDoc) *Component {
	return &Component{
		ID:           cd.ID,
		Path:         cd.Path,
		Name:         cd.Name,
		Relationship: cd.Relationship,
		Type:         cd.Type,
		State:        cd.State,
		ETag:         cd.ETag,
		Version:      cd.Version,
		Length:       cd.Length,
		Width:        cd.Width,
		Height:       cd.Height,
		Links:        copyLinks(cd.Links),
	}
}

func copyLinks(l Links) Links {
	if l == nil {
		return nil
	}
	out := make(Links, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
