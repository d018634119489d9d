package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectorySkeleton(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	for _, dir := range []string{s.ComponentsDir(), s.ClientDataDir(), filepath.Join(root, "pull"), filepath.Join(root, "push")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestWriteNewComponentMintsDistinctAssetIDs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	id1, err := s.WriteNewComponent("bin", []byte("v1"))
	require.NoError(t, err)
	id2, err := s.WriteNewComponent("bin", []byte("v2"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	got1, err := s.ReadComponent(id1, "bin")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got1)

	got2, err := s.ReadComponent(id2, "bin")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got2)
}

func TestReadComponentMissingReturnsFileDoesNotExist(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadComponent("nope", "bin")
	require.Error(t, err)
}

func TestHasComponent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.False(t, s.HasComponent("nope", "bin"))
	id, err := s.WriteNewComponent("bin", []byte("hi"))
	require.NoError(t, err)
	require.True(t, s.HasComponent(id, "bin"))
}

func TestManifestRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteManifest(s.ManifestPath(), []byte(`{"foo":"bar"}`), true))
	data, err := s.ReadManifest(s.ManifestPath())
	require.NoError(t, err)
	require.Equal(t, `{"foo":"bar"}`, string(data))
}

func TestRemoveAllDeletesEverything(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	_, err = s.WriteNewComponent("bin", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveAll())
	_, err = os.Stat(root)
	require.True(t, os.IsNotExist(err))
}
