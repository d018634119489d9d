package composite

import (
	"testing"

	events "github.com/docker/go-events"
	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/journal"
)

func TestNewEmptyCommitsImmediately(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	require.Equal(t, "Doc", c.Current().Name())
	require.Nil(t, c.Pulled())
	require.Nil(t, c.Pushed())
	require.Nil(t, c.Base())
}

func TestOpenFromLocalPathRoundTripsCommittedManifest(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)
	compositeID := c.Current().CompositeID()

	reopened, err := OpenFromLocalPath(dir, nil)
	require.NoError(t, err)
	require.Equal(t, compositeID, reopened.Current().CompositeID())
	require.Equal(t, "Doc", reopened.Current().Name())
}

func TestCommitChangesRegeneratesSaveID(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	first := c.Current().SaveID()

	require.NoError(t, c.CommitChanges())
	second := c.Current().SaveID()
	require.NotEqual(t, first, second)
}

func TestAcceptPushRequiresCompleteJournal(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)

	pushed := dom.New(c.Current().CompositeID(), "Doc", "application/x.test")
	require.NoError(t, c.SetPushed(pushed))

	j, err := journal.Open(c.Store(), c.Store().JournalPath())
	require.NoError(t, err)

	err = c.AcceptPush(j)
	require.Error(t, err, "an incomplete journal must not be accepted")
}

func TestAcceptPushPromotesPushedToCurrentAndBase(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)

	pushed := dom.New(c.Current().CompositeID(), "Doc", "application/x.test")
	pushed.SetCompositeHref("https://example.test/composites/1")
	pushed.SetETag("E1")
	require.NoError(t, c.SetPushed(pushed))

	j, err := journal.Open(c.Store(), c.Store().JournalPath())
	require.NoError(t, err)
	require.NoError(t, j.RecordManifestUpload("E1"))

	require.NoError(t, c.AcceptPush(j))
	require.Nil(t, c.Pushed())
	require.Equal(t, "https://example.test/composites/1", c.Current().CompositeHref())
	require.Equal(t, "E1", c.Current().ETag())
	require.NotNil(t, c.Base())
}

func TestAcceptPushNoopWithoutPushedBranch(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)

	j, err := journal.Open(c.Store(), c.Store().JournalPath())
	require.NoError(t, err)
	require.NoError(t, c.AcceptPush(j))
}

func TestResolvePullRequiresExistingPulledBranch(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)

	merged := dom.New(c.Current().CompositeID(), "Doc", "application/x.test")
	err = c.ResolvePull(merged)
	require.Error(t, err)
}

func TestResolvePullPromotesMergedAndReplacesBase(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)
	compositeID := c.Current().CompositeID()

	pulled := dom.New(compositeID, "Doc", "application/x.test")
	_, err = pulled.AddComponent(dom.RootID, dom.ComponentSpec{Name: "c2", Path: "c2.bin"})
	require.NoError(t, err)
	require.NoError(t, c.SetPulled(pulled))

	merged := dom.New(compositeID, "Doc", "application/x.test")
	_, err = merged.AddComponent(dom.RootID, dom.ComponentSpec{Name: "c1", Path: "c1.bin"})
	require.NoError(t, err)

	require.NoError(t, c.ResolvePull(merged))
	require.Nil(t, c.Pulled())
	require.NotNil(t, c.Base())
	_, ok := c.Current().ComponentByPath("c1.bin")
	require.True(t, ok)
}

func TestDiscardPulledIsNoopWhenAbsent(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)
	require.NoError(t, c.DiscardPulled())
	require.Nil(t, c.Pulled())
}

func TestResetBindingPurgesOtherBranches(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)

	compositeID := c.Current().CompositeID()
	pulled := dom.New(compositeID, "Doc", "application/x.test")
	require.NoError(t, c.SetPulled(pulled))

	require.NoError(t, c.ResetBinding())
	require.Nil(t, c.Pulled())
	require.Empty(t, c.Current().CompositeHref())
}

func TestRemoveLocalFilesForComponentsWithIDsSkipsModified(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmpty(dir, "Doc", "application/x.test", nil)
	require.NoError(t, err)

	comp, err := c.Current().AddComponent(dom.RootID, dom.ComponentSpec{Name: "c1", Path: "c1.bin"})
	require.NoError(t, err)

	assetID, err := c.Store().WriteNewComponent("bin", []byte("hello"))
	require.NoError(t, err)
	c.Current().SetAssetID(comp.ID, assetID)

	_, errs := c.RemoveLocalFilesForComponentsWithIDs([]string{comp.ID})
	require.Len(t, errs, 1, "a Modified component must not have its local file removed")
}

func TestMarkAndUnmarkFileInflight(t *testing.T) {
	c, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", nil)
	require.NoError(t, err)

	c.MarkFileInflight("x")
	require.Contains(t, c.inflightSnapshot(), "x")
	c.UnmarkFileInflight("x")
	require.NotContains(t, c.inflightSnapshot(), "x")
}

func TestPublishEmitsEventsToSink(t *testing.T) {
	sink := &capturingSink{}
	_, err := NewEmpty(t.TempDir(), "Doc", "application/x.test", sink)
	require.NoError(t, err)
	require.NotEmpty(t, sink.events)
	require.Equal(t, EventActionOpened, sink.events[0].(Event).Action)
}

type capturingSink struct {
	events []events.Event
}

func (s *capturingSink) Write(ev events.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *capturingSink) Close() error { return nil }
