package localstore

// ETagSource is the narrow view ReconcilePulled needs of one existing
// branch (current/pulled/pushed/base): which components it has a server
// etag for, and which local asset each is bound to. Kept as an interface,
// not a *dom.Manifest dependency, for the same layering reason as
// LiveSetSource.
type ETagSource interface {
	ComponentETags() map[string]string
	AssetID(componentID string) (string, bool)
}

// ReconcilePulled implements spec.md §4.5's "reconciling pulled storage":
// for every component in a freshly pulled manifest whose server etag
// already matches a component in one of the existing branches, and whose
// matching local asset file is actually present on disk, the mapping is
// reused so the pull doesn't re-download content this client already has.
// pulledEtags/pulledExt are the candidate pulled manifest's own component
// etag/path-extension views; branches are the existing current/pulled
// (stale)/pushed/base sources to search, in priority order.
func (s *Store) ReconcilePulled(pulledEtags map[string]string, pulledExt map[string]string, branches []ETagSource) map[string]string {
	reused := make(map[string]string, len(pulledEtags))
	for compID, etag := range pulledEtags {
		if etag == "" {
			continue
		}
		for _, b := range branches {
			if b == nil {
				continue
			}
			assetID, ok := findByETag(b, etag)
			if !ok {
				continue
			}
			if !s.HasComponent(assetID, pulledExt[compID]) {
				continue
			}
			reused[compID] = assetID
			break
		}
	}
	return reused
}

func findByETag(b ETagSource, etag string) (string, bool) {
	for candID, candETag := range b.ComponentETags() {
		if candETag != etag {
			continue
		}
		if assetID, ok := b.AssetID(candID); ok {
			return assetID, true
		}
	}
	return "", false
}
