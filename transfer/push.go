// Package transfer implements the push and pull algorithms of spec.md
// §4.7/§4.8 against a transport.Session, driving a composite's journal and
// local storage scheme the way the teacher's blobservice/manifestservice
// pair drives a distribution.Repository, but client-side and
// journal-resumable instead of server-side and stateless.
package transfer

import (
	"context"
	"time"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dcxcontext"
	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/dom"
	"github.com/adobe/dcxsync/journal"
	"github.com/adobe/dcxsync/localstore"
	"github.com/adobe/dcxsync/manifest"
	"github.com/adobe/dcxsync/pathutil"
	"github.com/adobe/dcxsync/transport"
)

// Push implements spec.md §4.7: it reads the committed (not in-memory)
// manifest, resumes from the push journal, and on success leaves a pushed
// branch on c for AcceptPush to fold into current. Push never mutates
// c.Current() itself.
func Push(ctx context.Context, c *composite.Composite, session transport.Session) (dom.Branch, error) {
	c.LockPush()
	defer c.UnlockPush()
	defer transferDuration.WithValues("push").UpdateSince(time.Now())

	log := dcxcontext.GetLogger(ctx)
	store := c.Store()

	data, err := store.ReadManifest(store.ManifestPath())
	if err != nil {
		return nil, err
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	pushed := dom.FromDocument(doc)

	if pushed.CompositeState() == dom.StateCommittedDelete {
		return nil, dcxerrors.New(dcxerrors.DeletedComposite, "composite was already committed-deleted")
	}

	j, err := journal.Open(store, store.JournalPath())
	if err != nil {
		return nil, err
	}
	if err := j.SetCurrentBranchEtag(pushed.ETag()); err != nil {
		return nil, err
	}

	// pushed.CompositeHref() reflects current, which push never mutates, so
	// on a resumed push it is still empty even though the composite was
	// already created on the server during a prior attempt — consult the
	// journal, not just the manifest, before deciding to create again.
	if pushed.CompositeHref() == "" {
		if j.CompositeCreated() {
			pushed.SetCompositeHref(j.CompositeHref())
		} else {
			result, err := session.CreateComposite(ctx, pushed.Name(), pushed.Type(), transport.PriorityNormal)
			if err != nil {
				return nil, err
			}
			pushed.SetCompositeHref(result.Href)
			pushed.SetETag(result.ETag)
			if err := j.MarkCompositeCreated(result.Href); err != nil {
				return nil, err
			}
		}
	}

	if pushed.CompositeState() == dom.StatePendingDelete {
		err := session.DeleteComposite(ctx, pushed.CompositeHref(), pushed.ETag(), transport.PriorityNormal)
		if err != nil {
			return nil, err
		}
		pushed.ForceCompositeState(dom.StateCommittedDelete)
		if err := c.SetPushed(pushed); err != nil {
			return nil, err
		}
		return pushed, nil
	}

	if pushed.CompositeState() == dom.StateUnmodified {
		return pushed, nil
	}

	for _, pc := range pushed.AllComponents() {
		if err := pushComponent(ctx, store, j, pushed, pc, session); err != nil {
			return nil, err
		}
	}

	manifestData, err := manifest.Serialize(pushed.ToDocument(), manifest.FlavorRemote)
	if err != nil {
		return nil, err
	}
	result, err := session.UpdateManifest(ctx, pushed.CompositeHref(), manifestData, j.CurrentBranchEtag(), transport.PriorityNormal)
	if err != nil {
		return nil, err
	}

	pushed.SetETag(result.ETag)
	// Everything reachable from this push has now been confirmed on the
	// server; clear the composite-level dirty flag so a later no-op push
	// takes the StateUnmodified short circuit instead of re-uploading.
	pushed.ForceCompositeState(dom.StateUnmodified)
	if err := j.RecordManifestUpload(result.ETag); err != nil {
		return nil, err
	}
	if err := c.SetPushed(pushed); err != nil {
		return nil, err
	}

	log.Debugf("push complete for composite %s", pushed.CompositeID())
	return pushed, nil
}

// pushComponent applies one component's push step of spec.md §4.7 step 6.
func pushComponent(ctx context.Context, store *localstore.Store, j *journal.Journal, pushed *dom.Manifest, pc *dom.Component, session transport.Session) error {
	switch pc.State {
	case dom.StateUnmodified:
		return nil

	case dom.StatePendingDelete:
		return pushed.UpdateComponent(pc.ID, func(c *dom.Component) {
			c.State = dom.StateCommittedDelete
		})

	case dom.StateCommittedDelete:
		href := pc.Links["self"]
		if href == "" {
			return pushed.RemoveComponent(pc.ID)
		}
		if err := session.DeleteComponent(ctx, href, pc.ETag, transport.PriorityNormal); err != nil {
			return err
		}
		return pushed.RemoveComponent(pc.ID)

	default: // Modified, or missing a server link
		return uploadModifiedComponent(ctx, store, j, pushed, pc, session)
	}
}

func uploadModifiedComponent(ctx context.Context, store *localstore.Store, j *journal.Journal, pushed *dom.Manifest, pc *dom.Component, session transport.Session) error {
	sourcePath, _ := pushed.AbsolutePath(pc.ID)

	if entry, ok := j.GetUploadedComponent(pc.ID, sourcePath); ok {
		return pushed.UpdateComponent(pc.ID, func(c *dom.Component) {
			c.ETag = entry.ETag
			c.Length = entry.Length
			c.State = dom.StateUnmodified
		})
	}

	assetID, ok := pushed.AssetID(pc.ID)
	if !ok {
		return dcxerrors.New(dcxerrors.MissingComponentAsset, "no local asset bound to component").WithContext("id", pc.ID)
	}
	data, err := store.ReadComponent(assetID, pathutil.Ext(pc.Path))
	if err != nil {
		return err
	}

	href := pc.Links["self"]
	var result *transport.ComponentResult
	if href == "" {
		result, err = session.UploadComponent(ctx, pushed.CompositeHref()+"/"+sourcePath, data, "", transport.PriorityNormal)
	} else {
		result, err = session.UploadComponent(ctx, href, data, pc.ETag, transport.PriorityNormal)
	}
	if err != nil {
		return err
	}
	transferBytes.WithValues("push", "upload").Inc(float64(len(data)))

	if err := j.RecordComponentUpload(pc.ID, journal.ComponentEntry{
		ETag:       result.ETag,
		Length:     result.Length,
		SourcePath: sourcePath,
		Digest:     localstore.ContentDigest(data),
	}); err != nil {
		return err
	}

	return pushed.UpdateComponent(pc.ID, func(c *dom.Component) {
		c.ETag = result.ETag
		c.Length = result.Length
		c.State = dom.StateUnmodified
	})
}
