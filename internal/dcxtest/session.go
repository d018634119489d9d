// Package dcxtest provides an in-memory fake of transport.Session for the
// transfer engine's tests, grounded on the teacher's testutil package (a
// collection of small, hand-built fakes standing in for the parts of the
// registry the test under examination doesn't itself exercise).
package dcxtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/transport"
)

// component is one asset held by the fake server.
type component struct {
	data []byte
	etag string
}

// Session is an in-memory fake transport.Session. It holds exactly one
// composite's manifest and component bytes, keyed by href, and enforces
// If-Match/If-None-Match the way a real object store would, so tests can
// exercise conflict and not-modified paths without a network.
type Session struct {
	mu sync.Mutex

	concurrency int
	nextID      int

	href           string
	created        bool
	deleted        bool
	manifestData   []byte
	manifestETag   string
	components     map[string]*component // href -> component

	// ForceConflict, when set, makes the next call whose ifMatch check it
	// intercepts return a conflict (as a 412-classified error), then is
	// cleared.
	ForceConflict bool

	// Calls counts invocations per method, for tests asserting how many
	// network round trips a push/pull made.
	Calls map[string]int
}

// NewSession returns an empty fake session with the given advertised
// concurrency (clamped by the transfer engine to 1..5 regardless).
func NewSession(concurrency int) *Session {
	return &Session{
		concurrency: concurrency,
		components:  map[string]*component{},
		Calls:       map[string]int{},
	}
}

func (s *Session) countLocked(name string) {
	s.Calls[name]++
}

func (s *Session) Concurrency() int { return s.concurrency }

func (s *Session) CreateComposite(ctx context.Context, name, mimeType string, priority transport.Priority) (*transport.CompositeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("CreateComposite")
	if s.created {
		return nil, dcxerrors.New(dcxerrors.CompositeAlreadyExists, "composite already exists")
	}
	s.nextID++
	s.href = fmt.Sprintf("https://example.test/composites/%d", s.nextID)
	s.created = true
	s.manifestETag = s.mintETag()
	return &transport.CompositeResult{Href: s.href, ETag: s.manifestETag}, nil
}

func (s *Session) DeleteComposite(ctx context.Context, href, ifMatch string, priority transport.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("DeleteComposite")
	if s.deleted {
		return nil
	}
	if err := s.checkIfMatchLocked(ifMatch); err != nil {
		return err
	}
	s.deleted = true
	return nil
}

func (s *Session) GetManifest(ctx context.Context, href, ifNoneMatch string, priority transport.Priority) (*transport.ManifestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("GetManifest")
	if !s.created {
		return nil, dcxerrors.New(dcxerrors.UnknownComposite, "no such composite").WithContext("href", href)
	}
	if ifNoneMatch != "" && ifNoneMatch == s.manifestETag {
		return &transport.ManifestResult{Changed: false, ETag: s.manifestETag}, nil
	}
	return &transport.ManifestResult{Data: append([]byte(nil), s.manifestData...), ETag: s.manifestETag, Changed: true}, nil
}

func (s *Session) UpdateManifest(ctx context.Context, href string, data []byte, ifMatch string, priority transport.Priority) (*transport.ManifestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("UpdateManifest")
	if err := s.checkIfMatchLocked(ifMatch); err != nil {
		return nil, err
	}
	s.manifestData = append([]byte(nil), data...)
	s.manifestETag = s.mintETag()
	return &transport.ManifestResult{ETag: s.manifestETag, Changed: true}, nil
}

func (s *Session) UploadComponent(ctx context.Context, href string, data []byte, ifMatch string, priority transport.Priority) (*transport.ComponentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("UploadComponent")
	existing := s.components[href]
	if existing != nil {
		if err := s.checkIfMatchValueLocked(ifMatch, existing.etag); err != nil {
			return nil, err
		}
	} else if ifMatch != "" {
		return nil, dcxerrors.New(dcxerrors.ConflictingChanges, "component does not exist remotely").WithContext("httpStatus", 412)
	}
	comp := &component{data: append([]byte(nil), data...), etag: s.mintETag()}
	s.components[href] = comp
	return &transport.ComponentResult{ETag: comp.etag, Length: int64(len(data))}, nil
}

func (s *Session) DownloadComponent(ctx context.Context, href string, priority transport.Priority) (*transport.ComponentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("DownloadComponent")
	comp, ok := s.components[href]
	if !ok {
		return nil, dcxerrors.New(dcxerrors.MissingComponentAsset, "no such component").WithContext("href", href)
	}
	return &transport.ComponentResult{Data: append([]byte(nil), comp.data...), ETag: comp.etag, Length: int64(len(comp.data))}, nil
}

func (s *Session) DeleteComponent(ctx context.Context, href, ifMatch string, priority transport.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLocked("DeleteComponent")
	comp, ok := s.components[href]
	if !ok {
		return nil
	}
	if err := s.checkIfMatchValueLocked(ifMatch, comp.etag); err != nil {
		return err
	}
	delete(s.components, href)
	return nil
}

// SeedComponent pre-populates a component at href with content and an
// etag, as if a previous push or an out-of-band server write had put it
// there, used to set up pull-side reconciliation and conflict tests.
func (s *Session) SeedComponent(href string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	comp := &component{data: append([]byte(nil), data...), etag: s.mintETag()}
	s.components[href] = comp
	return comp.etag
}

// SeedManifest pre-populates the server's manifest bytes and etag directly
// (as if a prior push happened, or a competing client wrote one), and marks
// the composite created, used by pull-focused tests that don't want to
// drive a push first.
func (s *Session) SeedManifest(href string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	s.href = href
	s.manifestData = append([]byte(nil), data...)
	s.manifestETag = s.mintETag()
	return s.manifestETag
}

func (s *Session) checkIfMatchLocked(ifMatch string) error {
	return s.checkIfMatchValueLocked(ifMatch, s.manifestETag)
}

func (s *Session) checkIfMatchValueLocked(ifMatch, current string) error {
	if s.ForceConflict {
		s.ForceConflict = false
		return dcxerrors.New(dcxerrors.ConflictingChanges, "forced conflict").WithContext("httpStatus", 412)
	}
	if ifMatch != "" && ifMatch != current {
		return dcxerrors.New(dcxerrors.ConflictingChanges, "etag mismatch").WithContext("httpStatus", 412)
	}
	return nil
}

func (s *Session) mintETag() string {
	s.nextID++
	return fmt.Sprintf("W/\"etag-%d\"", s.nextID)
}

var _ transport.Session = (*Session)(nil)
