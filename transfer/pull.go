package transfer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dcxcontext"
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/localstore"
	"github.com/adobe/dcxsync/manifest"
	"github.com/adobe/dcxsync/pathutil"
	"github.com/adobe/dcxsync/transport"
)

// Pull implements spec.md §4.8's full pull: fetch the manifest, reconcile
// local storage against existing branches, download every component whose
// content isn't already present locally, and on total success expose the
// result as composite.Pulled(). Returns (nil, nil) when the server reports
// 304 Not Modified — there is nothing new to pull.
func Pull(ctx context.Context, c *composite.Composite, session transport.Session) (dom.Branch, error) {
	c.LockPull()
	defer c.UnlockPull()
	return pull(ctx, c, session, true)
}

// PullMinimal implements spec.md §4.8's minimal pull: fetch and reconcile
// only, no asset downloads. Callers fetch assets later via
// DownloadComponents.
func PullMinimal(ctx context.Context, c *composite.Composite, session transport.Session) (dom.Branch, error) {
	c.LockPull()
	defer c.UnlockPull()
	return pull(ctx, c, session, false)
}

func pull(ctx context.Context, c *composite.Composite, session transport.Session, downloadAssets bool) (dom.Branch, error) {
	defer transferDuration.WithValues("pull").UpdateSince(time.Now())
	log := dcxcontext.GetLogger(ctx)
	current := c.Current()

	href := current.CompositeHref()
	if href == "" {
		return nil, dcxerrors.New(dcxerrors.CompositeHrefUnassigned, "composite has no server location to pull from")
	}

	result, err := session.GetManifest(ctx, href, current.ETag(), transport.PriorityNormal)
	if err != nil {
		return nil, err
	}
	if !result.Changed {
		log.Debugf("pull: composite %s unchanged at etag %s", current.CompositeID(), current.ETag())
		return nil, nil
	}

	doc, err := manifest.Parse(result.Data)
	if err != nil {
		return nil, err
	}
	pulled := dom.FromDocument(doc)
	pulled.SetETag(result.ETag)

	reconcile(c.Store(), pulled, c.AllBranches())

	if downloadAssets {
		if err := downloadAllMissing(ctx, c, pulled, session); err != nil {
			return nil, err
		}
	}

	if err := c.SetPulled(pulled); err != nil {
		return nil, err
	}
	log.Debugf("pull complete for composite %s", pulled.CompositeID())
	return pulled, nil
}

// reconcile asks localstore for any existing local copy of a pulled
// component (matched by server etag against current/pulled/pushed/base)
// and, when found, binds the pulled manifest to that asset instead of
// leaving it to be re-downloaded (spec.md §4.5).
func reconcile(store *localstore.Store, pulled *dom.Manifest, branches []*dom.Manifest) {
	etags := pulled.ComponentETags()
	exts := map[string]string{}
	for _, comp := range pulled.AllComponents() {
		exts[comp.ID] = pathutil.Ext(comp.Path)
	}

	sources := make([]localstore.ETagSource, 0, len(branches))
	for _, b := range branches {
		if b != nil && b != pulled {
			sources = append(sources, b)
		}
	}

	for compID, assetID := range store.ReconcilePulled(etags, exts, sources) {
		pulled.SetAssetID(compID, assetID)
	}
}

// missingComponents returns every requested component of branch (or, when
// ids is nil, every component) that has no local asset file yet.
func missingComponents(store *localstore.Store, branch *dom.Manifest, ids []string) []*dom.Component {
	var candidates []*dom.Component
	if ids == nil {
		candidates = branch.AllComponents()
	} else {
		for _, id := range ids {
			if c, ok := branch.GetComponent(id); ok {
				candidates = append(candidates, c)
			}
		}
	}

	var missing []*dom.Component
	for _, comp := range candidates {
		assetID, ok := branch.AssetID(comp.ID)
		if !ok || !store.HasComponent(assetID, pathutil.Ext(comp.Path)) {
			missing = append(missing, comp)
		}
	}
	return missing
}

// downloadAllMissing downloads every component of pulled missing local
// content, per spec.md §4.8 step 3.
func downloadAllMissing(ctx context.Context, c *composite.Composite, pulled *dom.Manifest, session transport.Session) error {
	return downloadComponents(ctx, c, pulled, missingComponents(c.Store(), pulled, nil), session)
}

// DownloadComponents implements spec.md §4.8's downloadComponents: fetches
// exactly the requested component ids (or, if ids is nil, every component
// currently missing local content) of the named branch
// ("current"/"pulled"/"pushed"/"base"), writing asset files and updating
// that branch's asset-id map. It never otherwise touches the branch's
// structure.
func DownloadComponents(ctx context.Context, c *composite.Composite, branchName string, ids []string, session transport.Session) error {
	branch, err := c.MutableBranchByName(branchName)
	if err != nil {
		return err
	}
	var candidates []*dom.Component
	if ids == nil {
		candidates = missingComponents(c.Store(), branch, nil)
	} else {
		for _, id := range ids {
			comp, ok := branch.GetComponent(id)
			if !ok {
				return dcxerrors.New(dcxerrors.UnknownID, "no component with this id").WithContext("id", id)
			}
			candidates = append(candidates, comp)
		}
	}
	return downloadComponents(ctx, c, branch, candidates, session)
}

// downloadComponents fans components out across session.Concurrency()
// concurrent downloads (spec.md §5: 1..5 concurrent requests), grounded on
// the teacher's errgroup.SetLimit worker-pool pattern
// (registry/storage/garbagecollect.go's parallel blob deletion). Component
// downloads may complete out of order (spec.md §5); the caller persists
// the branch only after every download in the batch has succeeded.
func downloadComponents(ctx context.Context, c *composite.Composite, branch *dom.Manifest, components []*dom.Component, session transport.Session) error {
	if len(components) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(session.Concurrency()))

	var mu sync.Mutex
	for _, comp := range components {
		comp := comp
		g.Go(func() error {
			assetID, err := downloadOne(groupCtx, c, comp, session)
			if err != nil {
				return err
			}
			mu.Lock()
			branch.SetAssetID(comp.ID, assetID)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// downloadOne fetches one component's asset content and writes it into
// local storage, marking the destination path inflight for the duration
// so reclamation never races an in-progress import (spec.md §4.4).
func downloadOne(ctx context.Context, c *composite.Composite, comp *dom.Component, session transport.Session) (assetID string, err error) {
	href := comp.Links["self"]
	if href == "" {
		return "", dcxerrors.New(dcxerrors.MissingComponentAsset, "component has no download link").WithContext("id", comp.ID)
	}

	result, err := session.DownloadComponent(ctx, href, transport.PriorityNormal)
	if err != nil {
		return "", err
	}

	ext := pathutil.Ext(comp.Path)
	assetID = pathutil.NewID()
	path := c.Store().ComponentPath(assetID, ext)
	c.MarkFileInflight(path)
	defer c.UnmarkFileInflight(path)

	if err := c.Store().WriteComponentAsset(assetID, ext, result.Data); err != nil {
		return "", dcxerrors.Wrap(dcxerrors.ComponentWriteFailure, err, "writing downloaded component").WithContext("id", comp.ID)
	}
	transferBytes.WithValues("pull", "download").Inc(float64(len(result.Data)))
	return assetID, nil
}

// clampConcurrency enforces spec.md §5's 1..5 bound regardless of what a
// misbehaving session reports.
func clampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}
