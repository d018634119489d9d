package localstore

import (
	"github.com/opencontainers/go-digest"

	"github.com/adobe/dcxsync/dcxerrors"
)

// ContentDigest computes the canonical content digest of a component
// asset's bytes, grounded on the teacher's pervasive use of digest.Digest
// as blob identity (internal/client/repository.go). Assets here are
// addressed by a minted assetId rather than their digest, but the digest
// still gives push/pull an integrity check independent of the server's
// etag: a digest recorded at download or upload time can be recomputed
// later to detect local corruption that a renamed-but-unchanged file
// wouldn't otherwise reveal.
func ContentDigest(content []byte) string {
	return digest.FromBytes(content).String()
}

// VerifyComponentDigest reads the asset file for assetID and reports
// whether its content digest matches want.
func (s *Store) VerifyComponentDigest(assetID, pathExt, want string) error {
	if want == "" {
		return nil
	}
	data, err := s.ReadComponent(assetID, pathExt)
	if err != nil {
		return err
	}
	got := ContentDigest(data)
	if got != want {
		return dcxerrors.New(dcxerrors.ComponentReadFailure, "component asset content digest mismatch").
			WithContext("assetId", assetID).
			WithContext("want", want).
			WithContext("got", got)
	}
	return nil
}
