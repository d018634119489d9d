package localstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adobe/dcxsync/dcxerrors"
)

// LiveSetSource supplies one branch's view of componentId -> assetId, used
// to build the live set for RemoveUnusedLocalFiles. Implementations are
// expected to be *dom.Manifest-backed asset-id maps (see composite), kept
// here as a narrow interface so localstore has no dependency on dom.
type LiveSetSource interface {
	// AssetIDs returns every assetId this source currently references.
	AssetIDs() []string
}

// RemoveUnusedLocalFiles implements the reclamation algorithm of spec.md
// §4.5: enumerate components/, compute the live set as the union of every
// branch's referenced asset ids plus the inflight set, and delete anything
// not in that union. It returns the total bytes freed.
func (s *Store) RemoveUnusedLocalFiles(branches []LiveSetSource, inflight map[string]struct{}) (bytesFreed int64, err error) {
	live := map[string]struct{}{}
	for _, b := range branches {
		if b == nil {
			continue
		}
		for _, id := range b.AssetIDs() {
			live[id] = struct{}{}
		}
	}
	// inflight holds file paths (see composite.MarkFileInflight); reduce
	// each to the bare assetId the directory scan below compares against.
	for p := range inflight {
		live[assetIDFromFileName(filepath.Base(p))] = struct{}{}
	}

	entries, err := os.ReadDir(s.ComponentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, dcxerrors.Wrap(dcxerrors.FileReadFailure, err, "listing components directory")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".tmp-") {
			continue
		}
		assetID := assetIDFromFileName(name)
		if _, ok := live[assetID]; ok {
			continue
		}
		info, statErr := entry.Info()
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		if err := os.Remove(filepath.Join(s.ComponentsDir(), name)); err != nil && !os.IsNotExist(err) {
			return bytesFreed, dcxerrors.Wrap(dcxerrors.FileWriteFailure, err, "removing unused component asset").
				WithContext("file", name)
		}
		bytesFreed += size
	}
	return bytesFreed, nil
}

// RemoveComponentAsset deletes a single component asset by id, returning
// its size in bytes, used by removeLocalFilesForComponentsWithIDs.
func (s *Store) RemoveComponentAsset(assetID, pathExt string) (int64, error) {
	p := s.ComponentPath(assetID, pathExt)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, dcxerrors.Wrap(dcxerrors.FileReadFailure, err, "stat component asset").WithContext("assetId", assetID)
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return 0, dcxerrors.Wrap(dcxerrors.FileWriteFailure, err, "removing component asset").WithContext("assetId", assetID)
	}
	return info.Size(), nil
}

// assetIDFromFileName strips the component's type-hint extension (if any)
// from a file name stored in components/, recovering the bare assetId used
// as the live-set key. Asset ids are minted by pathutil.NewID/uuid.NewString
// and never contain a '.', so the first dot (if any) always marks the start
// of the extension.
func assetIDFromFileName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
