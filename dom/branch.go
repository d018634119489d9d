package dom

import "time"

// Branch is the read-only facade over a manifest revision (spec.md §4.3).
// The composite container hands out a Branch for pulled/pushed/base, and a
// MutableBranch for current.
type Branch interface {
	CompositeID() string
	Name() string
	Type() string
	CompositeState() State
	ETag() string
	CompositeHref() string
	SaveID() string
	ManifestLinks() Links
	Dirty() bool
	Created() time.Time
	Modified() time.Time
	AssetID(componentID string) (string, bool)
	AssetIDs() []string
	AssetIDMap() map[string]string

	GetNode(id string) (*Node, bool)
	GetComponent(id string) (*Component, bool)
	NodeByPath(absPath string) (*Node, bool)
	ComponentByPath(absPath string) (*Component, bool)
	Parent(id string) (string, bool)
	Children(nodeID string) []*Node
	Components(nodeID string) []*Component
	AllNodes() []*Node
	AllComponents() []*Component
	AbsolutePath(id string) (string, bool)

	Verify() []Finding
}

// MutableBranch extends Branch with the mutation surface (spec.md §4.2).
// Every mutator either fully applies or returns an error with the manifest
// left byte-identical to before the call.
type MutableBranch interface {
	Branch

	AddNode(parentID string, spec NodeSpec) (*Node, error)
	UpdateNode(id string, mutate func(*Node)) error
	MoveNode(id, newParentID string, index int) error
	RemoveNode(id string) error

	AddComponent(parentID string, spec ComponentSpec) (*Component, error)
	UpdateComponent(id string, mutate func(*Component)) error
	MoveComponent(id, newParentID string, index int) error
	RemoveComponent(id string) error

	InsertChild(src Branch, subtreeRootID, destParentID string, opts InsertOptions) (added, removed []*Component, err error)

	SetCompositeState(s State) error
	SetCompositeHref(href string)
	SetETag(etag string)
	SetManifestLinks(l Links)
	SetAssetID(componentID, assetID string)

	ResetBinding()
	ResetIdentity()
}

var (
	_ Branch        = (*Manifest)(nil)
	_ MutableBranch = (*Manifest)(nil)
)
