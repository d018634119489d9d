package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/localstore"
)

func TestOpenFreshReturnsEmptyJournal(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.False(t, j.Complete())
	require.Empty(t, j.CompositeHref())

	_, ok := j.GetUploadedComponent("c1", "a.bin")
	require.False(t, ok)
}

func TestRecordComponentUploadPersistsAcrossReopen(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.NoError(t, j.RecordComponentUpload("c1", ComponentEntry{
		ETag: "E1", Length: 4, SourcePath: "a.bin",
	}))

	reopened, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	entry, ok := reopened.GetUploadedComponent("c1", "a.bin")
	require.True(t, ok)
	require.Equal(t, "E1", entry.ETag)
	require.EqualValues(t, 4, entry.Length)
}

func TestGetUploadedComponentMissesOnSourcePathMismatch(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.NoError(t, j.RecordComponentUpload("c1", ComponentEntry{
		ETag: "E1", Length: 4, SourcePath: "a.bin",
	}))

	_, ok := j.GetUploadedComponent("c1", "b.bin")
	require.False(t, ok, "a replaced source file must invalidate the journal entry")
}

func TestRecordManifestUploadMarksComplete(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.False(t, j.Complete())

	require.NoError(t, j.RecordManifestUpload("M1"))
	require.True(t, j.Complete())
	require.Equal(t, "M1", j.ManifestEtag())
}

func TestMarkCompositeCreatedRecordsHref(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.NoError(t, j.MarkCompositeCreated("https://example.test/composites/1"))
	require.True(t, j.CompositeCreated())
	require.Equal(t, "https://example.test/composites/1", j.CompositeHref())
}

func TestResetClearsEntries(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.NoError(t, j.RecordComponentUpload("c1", ComponentEntry{ETag: "E1", SourcePath: "a.bin"}))
	require.NoError(t, j.RecordManifestUpload("M1"))

	require.NoError(t, j.Reset())
	require.False(t, j.Complete())
	require.Empty(t, j.ManifestEtag())
	_, ok := j.GetUploadedComponent("c1", "a.bin")
	require.False(t, ok)
}

func TestOpenSurvivesTruncatedJournalFile(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.WriteManifest(store.JournalPath(), []byte(``), false))

	j, err := Open(store, store.JournalPath())
	require.NoError(t, err)
	require.False(t, j.Complete())
}

func TestOpenRejectsCorruptJournal(t *testing.T) {
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.WriteManifest(store.JournalPath(), []byte(`{not json`), false))

	_, err = Open(store, store.JournalPath())
	require.Error(t, err)
}
