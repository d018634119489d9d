package composite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/manifest"
)

func TestMergeCurrentIntoPulledRequiresPulledBranch(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)

	_, _, err = c.MergeCurrentIntoPulled()
	require.Error(t, err)
}

func TestMergeCurrentIntoPulledFoldsLocalChangesOverUnmodifiedPulledContent(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	compositeID := c.Current().CompositeID()

	folder, err := c.Current().AddNode(dom.RootID, dom.NodeSpec{Name: "folder", Type: "folder", Path: "folder"})
	require.NoError(t, err)
	newComp, err := c.Current().AddComponent(folder.ID, dom.ComponentSpec{Name: "new", Path: "new.png"})
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	// pulled shares the composite's existing folder id (the server still
	// has the same node) but with different, unmodified content: this is
	// what a real pull response looks like when a node current has locally
	// edited hasn't itself changed upstream.
	pulledDoc := &manifest.Document{
		ID:    compositeID,
		Name:  "Doc",
		Type:  "application/x.test",
		State: manifest.StateUnmodified,
		Children: []*manifest.NodeDoc{{
			ID: folder.ID, Name: "folder", Type: "folder", Path: "folder",
			Components: []*manifest.ComponentDoc{{
				ID: "old-comp", Path: "old.png", Name: "old", State: manifest.StateUnmodified,
			}},
		}},
	}
	require.NoError(t, c.SetPulled(dom.FromDocument(pulledDoc)))

	merged, skipped, err := c.MergeCurrentIntoPulled()
	require.NoError(t, err)
	require.Empty(t, skipped)

	mergedFolder, ok := merged.GetNode(folder.ID)
	require.True(t, ok, "expected merged manifest to keep the folder's original id")
	require.Len(t, mergedFolder.ComponentIDs, 1)
	require.Equal(t, newComp.ID, mergedFolder.ComponentIDs[0], "expected current's content to win over pulled's")

	_, ok = merged.GetComponent("old-comp")
	require.False(t, ok, "expected pulled's superseded component to be gone")

	require.NoError(t, c.ResolvePull(merged))
	require.Equal(t, newComp.ID, c.Current().Components(folder.ID)[0].ID)
}

func TestMergeCurrentIntoPulledSkipsNodeWhoseParentIsGoneUpstream(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	compositeID := c.Current().CompositeID()

	// container only exists locally; folder (carrying the local edit) sits
	// underneath it, so folder's *parent* — not folder itself — is what's
	// missing from pulled.
	container, err := c.Current().AddNode(dom.RootID, dom.NodeSpec{Name: "container", Type: "folder", Path: "container"})
	require.NoError(t, err)
	folder, err := c.Current().AddNode(container.ID, dom.NodeSpec{Name: "folder", Type: "folder", Path: "folder"})
	require.NoError(t, err)
	_, err = c.Current().AddComponent(folder.ID, dom.ComponentSpec{Name: "new", Path: "new.png"})
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	pulledDoc := &manifest.Document{ID: compositeID, Name: "Doc", Type: "application/x.test", State: manifest.StateUnmodified}
	require.NoError(t, c.SetPulled(dom.FromDocument(pulledDoc)))

	merged, skipped, err := c.MergeCurrentIntoPulled()
	require.NoError(t, err)
	require.Equal(t, []string{folder.ID}, skipped)
	_, ok := merged.GetNode(folder.ID)
	require.False(t, ok)
}
