// Package localstore implements the on-disk copy-on-write layout for a
// composite's local data (spec.md §4.5): the manifest revisions, the push
// journal, and the flat, GUID-named component asset files.
package localstore

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/adobe/dcxsync/dcxerrors"
)

const (
	manifestFile     = "manifest"
	baseManifestFile = "manifest.base"
	pullManifestFile = "pull/manifest"
	pushManifestFile = "push/manifest"
	journalFile      = "push/journal"
	componentsDir    = "components"
	clientDataDir    = "clientdata"
)

// Store is the on-disk representation of a single composite's local data,
// rooted at Root (DESIGN NOTES §9: one Store per composite directory, never
// shared).
type Store struct {
	Root string
}

// Open returns a Store rooted at root, creating the directory structure if
// it doesn't yet exist.
func Open(root string) (*Store, error) {
	s := &Store{Root: root}
	for _, dir := range []string{root, filepath.Join(root, "pull"), filepath.Join(root, "push"), s.ComponentsDir(), s.ClientDataDir()} {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, dcxerrors.Wrap(dcxerrors.InvalidLocalStoragePath, err, "creating local storage directory").
				WithContext("path", dir)
		}
	}
	return s, nil
}

// ComponentsDir is the flat directory of GUID-named asset files.
func (s *Store) ComponentsDir() string { return filepath.Join(s.Root, componentsDir) }

// ClientDataDir is opaque client-owned storage, ignored by reclamation.
func (s *Store) ClientDataDir() string { return filepath.Join(s.Root, clientDataDir) }

func (s *Store) path(rel string) string { return filepath.Join(s.Root, filepath.FromSlash(rel)) }

// ReadManifest reads the raw bytes of one of the four manifest revisions.
func (s *Store) ReadManifest(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.path(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dcxerrors.New(dcxerrors.FileDoesNotExist, "manifest file does not exist").WithContext("path", rel)
		}
		return nil, dcxerrors.Wrap(dcxerrors.ManifestReadFailure, err, "reading manifest").WithContext("path", rel)
	}
	return data, nil
}

// WriteManifest atomically writes one of the four manifest revisions.
// kind distinguishes the final-write failure mode for the committed
// current manifest (spec.md §7: ManifestFinalWriteFailure is reserved for
// the post-upload, pre-commit crash window), so callers writing `manifest`
// itself pass finalWrite=true.
func (s *Store) WriteManifest(rel string, data []byte, finalWrite bool) error {
	if err := s.atomicWrite(s.path(rel), data); err != nil {
		kind := dcxerrors.ManifestWriteFailure
		if finalWrite {
			kind = dcxerrors.ManifestFinalWriteFailure
		}
		return dcxerrors.Wrap(kind, err, "writing manifest").WithContext("path", rel)
	}
	return nil
}

// RemoveManifest deletes one of the four manifest revisions or the journal
// file, treating an already-absent file as success (discardPulled,
// discardPushed, and the journal reset paths in composite are no-ops when
// the artifact was never written).
func (s *Store) RemoveManifest(rel string) error {
	if err := os.Remove(s.path(rel)); err != nil && !os.IsNotExist(err) {
		return dcxerrors.Wrap(dcxerrors.FileWriteFailure, err, "removing manifest artifact").WithContext("path", rel)
	}
	return nil
}

// ManifestPath, BaseManifestPath, PullManifestPath, PushManifestPath, and
// JournalPath are the relative paths passed to ReadManifest/WriteManifest
// and the journal package.
func (s *Store) ManifestPath() string     { return manifestFile }
func (s *Store) BaseManifestPath() string { return baseManifestFile }
func (s *Store) PullManifestPath() string { return pullManifestFile }
func (s *Store) PushManifestPath() string { return pushManifestFile }
func (s *Store) JournalPath() string      { return journalFile }

// ComponentPath returns the on-disk path for a component asset, given its
// assetId and the component's path extension. The extension is there for
// type hinting but is part of the file name, so a lookup must pass the same
// extension the asset was written with; only reclamation identifies a file
// by its assetId alone.
func (s *Store) ComponentPath(assetID, pathExt string) string {
	name := assetID
	if pathExt != "" {
		name += "." + pathExt
	}
	return filepath.Join(s.ComponentsDir(), name)
}

// ReadComponent reads a component asset's content from the single path
// ComponentPath(assetID, pathExt) names. No other file name is tried, so a
// caller that passes a different extension than the asset was written with
// gets FileDoesNotExist.
func (s *Store) ReadComponent(assetID, pathExt string) ([]byte, error) {
	p := s.ComponentPath(assetID, pathExt)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dcxerrors.New(dcxerrors.FileDoesNotExist, "component asset file does not exist").WithContext("assetId", assetID)
		}
		return nil, dcxerrors.Wrap(dcxerrors.ComponentReadFailure, err, "reading component asset").WithContext("assetId", assetID)
	}
	return data, nil
}

// WriteNewComponent mints a fresh assetId and writes content to it via a
// temp-file-then-rename, never touching any existing asset file (spec.md
// §4.5: a new version always gets a new assetId).
func (s *Store) WriteNewComponent(pathExt string, content []byte) (assetID string, err error) {
	return s.WriteComponentAsset(uuid.NewString(), pathExt, content)
}

// WriteComponentAsset writes content to the asset file named by assetID,
// minting none of its own. Used when the caller (composite, or a pull's
// download fan-out) needs to reserve the assetId up front, e.g. to mark it
// inflight before the write races a concurrent RemoveUnusedLocalFiles.
func (s *Store) WriteComponentAsset(assetID, pathExt string, content []byte) error {
	if err := s.atomicWrite(s.ComponentPath(assetID, pathExt), content); err != nil {
		return dcxerrors.Wrap(dcxerrors.ComponentWriteFailure, err, "writing component asset").WithContext("assetId", assetID)
	}
	return nil
}

// HasComponent reports whether an asset file exists for assetID.
func (s *Store) HasComponent(assetID, pathExt string) bool {
	_, err := os.Stat(s.ComponentPath(assetID, pathExt))
	return err == nil
}

// atomicWrite writes data to a temp file under dir then renames it into
// place, grounded on the teacher's filesystem storage driver's
// write-then-Move pattern (registry/storage/driver/filesystem/driver.go's
// PutContent).
func (s *Store) atomicWrite(finalPath string, data []byte) error {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// RemoveAll deletes the entire composite directory (removeLocalStorage,
// spec.md §4.4).
func (s *Store) RemoveAll() error {
	if err := os.RemoveAll(s.Root); err != nil {
		return dcxerrors.Wrap(dcxerrors.FileWriteFailure, err, "removing local storage").WithContext("path", s.Root)
	}
	return nil
}
