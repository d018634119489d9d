package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/internal/dcxtest"
	"github.com/adobe/dcxsync/manifest"
)

type remoteComponent struct {
	path string
	data []byte
}

// seedRemoteComposite builds a server-side manifest referencing comps (each
// uploaded to the fake session first so its etag is real) and installs it
// as href's current manifest.
func seedRemoteComposite(t *testing.T, session *dcxtest.Session, href string, comps []remoteComponent) *dom.Manifest {
	t.Helper()
	m := dom.New("composite-1", "Doc", "application/x.test")
	for _, rc := range comps {
		compHref := href + "/" + rc.path
		etag := session.SeedComponent(compHref, rc.data)
		comp, err := m.AddComponent(dom.RootID, dom.ComponentSpec{
			Name: rc.path, Path: rc.path, Links: dom.Links{"self": compHref},
		})
		require.NoError(t, err)
		require.NoError(t, m.UpdateComponent(comp.ID, func(c *dom.Component) {
			c.ETag = etag
			c.State = dom.StateUnmodified
		}))
	}
	data, err := manifest.Serialize(m.ToDocument(), manifest.FlavorRemote)
	require.NoError(t, err)
	session.SeedManifest(href, data)
	return m
}

func newBoundComposite(t *testing.T, href string) *composite.Composite {
	t.Helper()
	c, err := composite.BindToRemoteHref(t.TempDir(), "composite-1", "Doc", "application/x.test", href, "", nil)
	require.NoError(t, err)
	return c
}

func TestPullDownloadsComponentsAndSetsPulledBranch(t *testing.T) {
	ctx := context.Background()
	href := "https://example.test/composites/1"
	c := newBoundComposite(t, href)
	session := dcxtest.NewSession(2)
	seedRemoteComposite(t, session, href, []remoteComponent{{path: "a.bin", data: []byte("hello")}})

	branch, err := Pull(ctx, c, session)
	require.NoError(t, err)
	require.NotNil(t, branch)
	require.Equal(t, 1, session.Calls["DownloadComponent"])

	pulled := c.Pulled()
	require.NotNil(t, pulled)
	comps := pulled.AllComponents()
	require.Len(t, comps, 1)

	assetID, ok := pulled.AssetID(comps[0].ID)
	require.True(t, ok)
	require.True(t, c.Store().HasComponent(assetID, "bin"))

	got, err := c.Store().ReadComponent(assetID, "bin")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestPullReturnsNilWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	href := "https://example.test/composites/2"
	c := newBoundComposite(t, href)
	session := dcxtest.NewSession(2)
	seedRemoteComposite(t, session, href, nil)

	_, err := Pull(ctx, c, session)
	require.NoError(t, err)

	merged, err := c.MutableBranchByName("pulled")
	require.NoError(t, err)
	require.NoError(t, c.ResolvePull(merged))

	// Current now carries the server's etag; nothing changed remotely, so a
	// second pull must report no change without downloading anything.
	result, err := Pull(ctx, c, session)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 0, session.Calls["DownloadComponent"])
}

func TestPullReconcilesExistingLocalCopyInsteadOfRedownloading(t *testing.T) {
	ctx := context.Background()
	href := "https://example.test/composites/3"
	c := newBoundComposite(t, href)
	session := dcxtest.NewSession(2)

	// First pull brings "a.bin" down and the caller resolves it into
	// current, so current now has a local asset bound to this component's
	// etag.
	seedRemoteComposite(t, session, href, []remoteComponent{{path: "a.bin", data: []byte("v1")}})
	_, err := Pull(ctx, c, session)
	require.NoError(t, err)
	merged, err := c.MutableBranchByName("pulled")
	require.NoError(t, err)
	require.NoError(t, c.ResolvePull(merged))
	require.Equal(t, 1, session.Calls["DownloadComponent"])

	// The server now reports the very same component (unchanged etag,
	// because nothing about it actually changed) alongside a brand-new one.
	// A naive pull would try to download both; reconciliation must recognise
	// the unchanged component is already on disk under the etag recorded on
	// the prior pulled (now current) branch and skip its download.
	m := dom.New("composite-1", "Doc", "application/x.test")
	existingEtag := ""
	for _, comp := range merged.AllComponents() {
		existingEtag = comp.ETag
	}
	require.NotEmpty(t, existingEtag)

	reused, err := m.AddComponent(dom.RootID, dom.ComponentSpec{Name: "a.bin", Path: "a.bin", Links: dom.Links{"self": href + "/a.bin"}})
	require.NoError(t, err)
	require.NoError(t, m.UpdateComponent(reused.ID, func(c *dom.Component) {
		c.ETag = existingEtag
		c.State = dom.StateUnmodified
	}))
	fresh, err := m.AddComponent(dom.RootID, dom.ComponentSpec{Name: "b.bin", Path: "b.bin", Links: dom.Links{"self": href + "/b.bin"}})
	require.NoError(t, err)
	freshEtag := session.SeedComponent(href+"/b.bin", []byte("v2"))
	require.NoError(t, m.UpdateComponent(fresh.ID, func(c *dom.Component) {
		c.ETag = freshEtag
		c.State = dom.StateUnmodified
	}))
	data, err := manifest.Serialize(m.ToDocument(), manifest.FlavorRemote)
	require.NoError(t, err)
	session.SeedManifest(href, data)

	_, err = Pull(ctx, c, session)
	require.NoError(t, err)

	// Only the brand-new component should have triggered a download.
	require.Equal(t, 2, session.Calls["DownloadComponent"])

	pulled := c.Pulled()
	require.NotNil(t, pulled)
	for _, comp := range pulled.AllComponents() {
		assetID, ok := pulled.AssetID(comp.ID)
		require.True(t, ok, "component %s has no local asset bound after reconciliation", comp.ID)
		require.True(t, c.Store().HasComponent(assetID, "bin"))
	}
}

func TestDownloadComponentsFetchesOnlyRequestedIDs(t *testing.T) {
	ctx := context.Background()
	href := "https://example.test/composites/4"
	c := newBoundComposite(t, href)
	session := dcxtest.NewSession(3)
	seedRemoteComposite(t, session, href, []remoteComponent{
		{path: "a.bin", data: []byte("a")},
		{path: "b.bin", data: []byte("b")},
	})

	_, err := PullMinimal(ctx, c, session)
	require.NoError(t, err)
	require.Equal(t, 0, session.Calls["DownloadComponent"])

	pulled := c.Pulled()
	require.NotNil(t, pulled)
	var wantID string
	for _, comp := range pulled.AllComponents() {
		if comp.Name == "a.bin" {
			wantID = comp.ID
		}
	}
	require.NotEmpty(t, wantID)

	require.NoError(t, DownloadComponents(ctx, c, "pulled", []string{wantID}, session))
	require.Equal(t, 1, session.Calls["DownloadComponent"])

	assetID, ok := pulled.AssetID(wantID)
	require.True(t, ok)
	require.True(t, c.Store().HasComponent(assetID, "bin"))
}
