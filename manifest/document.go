// Package manifest parses and serializes the manifest document format
// described in spec.md §6, including the reserved local-only subtree and
// format-version migration.
package manifest

import (
	"time"
)

// CurrentFormatVersion is the format version this codec writes.
const CurrentFormatVersion = 3

// State is the shared asset-state enum for both composites and components.
type State string

const (
	StateUnmodified     State = "Unmodified"
	StateModified        State = "Modified"
	StatePendingDelete   State = "PendingDelete"
	StateCommittedDelete State = "CommittedDelete"
)

// Links is a typed map from link relation to URL, e.g. {"self": "https://..."}.
type Links map[string]string

// ComponentDoc is the wire representation of a component (spec.md §6).
type ComponentDoc struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Name         string `json:"name"`
	Relationship string `json:"rel,omitempty"`
	Type         string `json:"type,omitempty"`
	State        State  `json:"state"`
	ETag         string `json:"etag,omitempty"`
	Version      string `json:"version,omitempty"`
	Length       int64  `json:"length,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Links        Links  `json:"_links,omitempty"`
}

// NodeDoc is the wire representation of a node (spec.md §6).
type NodeDoc struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Path       string          `json:"path,omitempty"`
	Type       string          `json:"type,omitempty"`
	Children   []*NodeDoc      `json:"children,omitempty"`
	Components []*ComponentDoc `json:"components,omitempty"`
}

// LocalSubtree is the `_local` reserved key: present in localData, stripped
// from remoteData.
type LocalSubtree struct {
	Version                int               `json:"version"`
	SaveID                 string            `json:"saveId"`
	LocalStorageAssetIDMap map[string]string `json:"localStorageAssetIdMap,omitempty"`
	CompositeHref          string            `json:"compositeHref,omitempty"`
	ManifestEtag           string            `json:"manifestEtag,omitempty"`
	Collaboration          map[string]any    `json:"collaboration,omitempty"`
}

// Document is the root of the manifest wire format.
type Document struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Created      time.Time       `json:"created"`
	Modified     time.Time       `json:"modified"`
	State        State           `json:"state"`
	ETag         string          `json:"etag,omitempty"`
	Components   []*ComponentDoc `json:"components,omitempty"`
	Children     []*NodeDoc      `json:"children,omitempty"`
	Links        Links           `json:"_links,omitempty"`
	Local        *LocalSubtree   `json:"_local,omitempty"`

	// Unknown carries any top-level keys this codec doesn't recognize, so
	// they survive an unchanged round-trip (DESIGN NOTES §9: typed fields
	// plus a side-car map for the unknown rest).
	Unknown map[string]any `json:"-"`
}

// Flavor selects which subtrees Serialize emits.
type Flavor int

const (
	// FlavorLocal includes the _local subtree (committed/base/pulled/pushed
	// manifests on disk).
	FlavorLocal Flavor = iota
	// FlavorRemote strips _local (what gets PUT to the server).
	FlavorRemote
)
