package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/internal/dcxtest"
	"github.com/adobe/dcxsync/journal"
)

func newTestComposite(t *testing.T) *composite.Composite {
	t.Helper()
	c, err := composite.NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	return c
}

func openJournalForTest(c *composite.Composite) (*journal.Journal, error) {
	return journal.Open(c.Store(), c.Store().JournalPath())
}

func TestPushCreatesCompositeAndUploadsComponent(t *testing.T) {
	ctx := context.Background()
	c := newTestComposite(t)
	session := dcxtest.NewSession(3)

	_, err := c.AddComponentWithContent(dom.RootID, dom.ComponentSpec{Name: "a", Path: "a.bin"}, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	pushed, err := Push(ctx, c, session)
	require.NoError(t, err)
	require.NotNil(t, pushed)
	require.NotEmpty(t, pushed.CompositeHref())

	require.Equal(t, 1, session.Calls["CreateComposite"])
	require.Equal(t, 1, session.Calls["UploadComponent"])
	require.Equal(t, 1, session.Calls["UpdateManifest"])

	// The composite's in-memory pushed branch must reflect the push
	// immediately, without a reopen, so AcceptPush has something to fold.
	require.NotNil(t, c.Pushed())
	require.Equal(t, pushed.CompositeHref(), c.Pushed().CompositeHref())
}

func TestPushOnUnmodifiedCompositeUploadsNothing(t *testing.T) {
	ctx := context.Background()
	c := newTestComposite(t)
	session := dcxtest.NewSession(2)

	href, err := Push(ctx, c, session)
	require.NoError(t, err)
	require.NotNil(t, href)

	// The first push created the composite on the server. A second push
	// with nothing changed finds that creation in the journal instead of
	// creating it again, and takes the StateUnmodified short circuit before
	// touching components or the manifest.
	again, err := Push(ctx, c, session)
	require.NoError(t, err)
	require.NotNil(t, again)
	require.Equal(t, 0, session.Calls["UploadComponent"])
}

func TestPushResumesFromJournalAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := composite.NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)
	session := dcxtest.NewSession(1)

	_, err = c.AddComponentWithContent(dom.RootID, dom.ComponentSpec{Name: "a", Path: "a.bin"}, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	_, err = Push(ctx, c, session)
	require.NoError(t, err)
	require.Equal(t, 1, session.Calls["UploadComponent"])

	// Simulate the process restarting: reopen from disk, push again. The
	// journal already has this component's upload recorded under the same
	// source path, so it must not be re-uploaded.
	reopened, err := composite.OpenFromLocalPath(dir, nil)
	require.NoError(t, err)

	_, err = Push(ctx, reopened, session)
	require.NoError(t, err)
	require.Equal(t, 1, session.Calls["UploadComponent"])
}

func TestPushSurfacesConflictingChanges(t *testing.T) {
	ctx := context.Background()
	c := newTestComposite(t)
	session := dcxtest.NewSession(2)

	_, err := Push(ctx, c, session)
	require.NoError(t, err)

	_, err = c.AddComponentWithContent(dom.RootID, dom.ComponentSpec{Name: "a", Path: "a.bin"}, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	session.ForceConflict = true
	_, err = Push(ctx, c, session)
	require.Error(t, err)
	require.True(t, dcxerrors.Is(err, dcxerrors.ConflictingChanges))
}

func TestAcceptPushFoldsPushedIntoCurrent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := composite.NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)
	session := dcxtest.NewSession(2)

	comp, err := c.AddComponentWithContent(dom.RootID, dom.ComponentSpec{Name: "a", Path: "a.bin"}, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.CommitChanges())

	_, err = Push(ctx, c, session)
	require.NoError(t, err)
	require.NotNil(t, c.Pushed())

	j, err := openJournalForTest(c)
	require.NoError(t, err)
	require.True(t, j.Complete())

	require.NoError(t, c.AcceptPush(j))
	require.Nil(t, c.Pushed())

	got, ok := c.Current().GetComponent(comp.ID)
	require.True(t, ok)
	require.Equal(t, dom.StateUnmodified, got.State)
	require.NotEmpty(t, got.ETag)
}
