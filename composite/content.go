package composite

import (
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/pathutil"
)

// AddComponentWithContent adds a new component under parentID to current
// and binds it to a freshly written local asset in one step, the common
// case of a client adding a brand-new binary asset to a composite. The
// component comes back in state Modified, same as dom.AddComponent alone.
func (c *Composite) AddComponentWithContent(parentID string, spec dom.ComponentSpec, content []byte) (*dom.Component, error) {
	c.mu.Lock()
	comp, err := c.current.AddComponent(parentID, spec)
	if err == nil {
		err = c.current.SetCompositeState(dom.StateModified)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := c.writeComponentContent(comp.ID, pathutil.Ext(comp.Path), content); err != nil {
		return nil, err
	}
	return comp, nil
}

// WriteComponentContent replaces a component's local asset content: it
// mints a fresh assetId (spec.md §4.5's copy-on-write rule — the previous
// version's file is left untouched until reclamation), writes it, rebinds
// the component to the new assetId, records the new length, and marks the
// component Modified.
func (c *Composite) WriteComponentContent(componentID string, content []byte) error {
	c.mu.Lock()
	comp, ok := c.current.GetComponent(componentID)
	c.mu.Unlock()
	if !ok {
		return dcxerrors.New(dcxerrors.UnknownID, "no component with this id").WithContext("id", componentID)
	}
	if err := c.writeComponentContent(componentID, pathutil.Ext(comp.Path), content); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.current.UpdateComponent(componentID, func(cc *dom.Component) {
		cc.Length = int64(len(content))
		cc.State = dom.StateModified
	}); err != nil {
		return err
	}
	return c.current.SetCompositeState(dom.StateModified)
}

// writeComponentContent mints a new assetId, marks it inflight for the
// duration of the write so RemoveUnusedLocalFiles never races an
// in-progress import (spec.md §4.4), writes the asset, then rebinds
// componentID to it in current.
func (c *Composite) writeComponentContent(componentID, pathExt string, content []byte) error {
	assetID := pathutil.NewID()
	path := c.store.ComponentPath(assetID, pathExt)
	c.MarkFileInflight(path)
	defer c.UnmarkFileInflight(path)

	if err := c.store.WriteComponentAsset(assetID, pathExt, content); err != nil {
		return err
	}

	c.mu.Lock()
	c.current.SetAssetID(componentID, assetID)
	c.mu.Unlock()
	return nil
}
