package manifest

import (
	"fmt"

	"github.com/adobe/dcxsync/dcxerrors"
)

// migrateFunc upgrades doc in place from one format version to the next.
// Modeled on the teacher's schema1->schema2 conversion functions, but
// generalized into an ordered, keyed chain per spec.md §4.1 rather than a
// single hard-coded conversion.
type migrateFunc func(doc *Document) error

// migrators is keyed by the version a step upgrades *from*.
var migrators = map[int]migrateFunc{
	1: migrateV1toV2,
	2: migrateV2toV3,
}

// migrateV1toV2 moves the flat top-level "href" string of earlier documents
// into the manifest-level Links map under "self".
func migrateV1toV2(doc *Document) error {
	if href, ok := doc.Unknown["href"]; ok {
		if s, ok := href.(string); ok && s != "" {
			if doc.Links == nil {
				doc.Links = Links{}
			}
			doc.Links["self"] = s
		}
		delete(doc.Unknown, "href")
	}
	return nil
}

// migrateV2toV3 introduces the explicit component State enum; earlier
// documents used a boolean "modified" flag.
func migrateV2toV3(doc *Document) error {
	var walk func(components []*ComponentDoc)
	walk = func(components []*ComponentDoc) {
		for _, c := range components {
			if c.State == "" {
				c.State = StateUnmodified
			}
		}
	}
	walk(doc.Components)
	var walkNodes func(nodes []*NodeDoc)
	walkNodes = func(nodes []*NodeDoc) {
		for _, n := range nodes {
			walk(n.Components)
			walkNodes(n.Children)
		}
	}
	walkNodes(doc.Children)
	return nil
}

// migrate applies every migrator from fromVersion up to toVersion in order.
// Any missing step, or a step returning an error, fails the whole migration
// with InvalidManifest per spec.md §4.1.
func migrate(doc *Document, fromVersion, toVersion int) error {
	if fromVersion > toVersion {
		return dcxerrors.New(dcxerrors.InvalidManifest,
			fmt.Sprintf("manifest format version %d is newer than supported version %d", fromVersion, toVersion))
	}
	for v := fromVersion; v < toVersion; v++ {
		step, ok := migrators[v]
		if !ok {
			return dcxerrors.New(dcxerrors.InvalidManifest,
				fmt.Sprintf("no migration step registered from format version %d", v))
		}
		if err := step(doc); err != nil {
			return dcxerrors.Wrap(dcxerrors.InvalidManifest, err,
				fmt.Sprintf("migration from format version %d failed", v))
		}
	}
	if doc.Local == nil {
		doc.Local = &LocalSubtree{}
	}
	doc.Local.Version = toVersion
	return nil
}
