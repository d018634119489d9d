package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/adobe/dcxsync/dcxerrors"
)

// HTTPOptions configures HTTPSession, decoded by callers via mapstructure
// from a generic options map the way dcxconfig decodes the rest of the
// client's configuration.
type HTTPOptions struct {
	BaseURL     string        `mapstructure:"baseUrl"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// HTTPSession is the reference transport.Session implementation, wrapping
// net/http the way the teacher's internal/client/repository.go wraps it
// for manifests and blobs: conditional requests via If-Match/If-None-Match,
// and HTTP error classification via internal/client/errors.go's pattern
// (here, transport/classify.go).
type HTTPSession struct {
	client      *http.Client
	baseURL     string
	concurrency int
}

// NewHTTPSession constructs an HTTPSession from options and an optional
// http.RoundTripper (nil uses http.DefaultTransport); auth-token injection
// and retry of transient 5xx, per spec.md §4.9, are expected to live in a
// RoundTripper the caller supplies here.
func NewHTTPSession(opts HTTPOptions, rt http.RoundTripper) *HTTPSession {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 5 {
		concurrency = 5
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPSession{
		client:      &http.Client{Transport: rt, Timeout: timeout},
		baseURL:     opts.BaseURL,
		concurrency: concurrency,
	}
}

func (s *HTTPSession) Concurrency() int { return s.concurrency }

func (s *HTTPSession) CreateComposite(ctx context.Context, name, mimeType string, priority Priority) (*CompositeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/composites", bytes.NewReader(nil))
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Composite-Name", name)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponseError(resp, false, false)
	}
	return &CompositeResult{Href: resp.Header.Get("Location"), ETag: resp.Header.Get("ETag")}, nil
}

func (s *HTTPSession) DeleteComposite(ctx context.Context, href, ifMatch string, priority Priority) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, href, nil)
	if err != nil {
		return ClassifyTransportError(err)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil // treated as already-deleted success, spec.md §6
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponseError(resp, false, false)
	}
	return nil
}

func (s *HTTPSession) GetManifest(ctx context.Context, href, ifNoneMatch string, priority Priority) (*ManifestResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &ManifestResult{Changed: false, ETag: ifNoneMatch}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponseError(resp, true, false)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.NetworkFailure, err, "reading manifest response body")
	}
	return &ManifestResult{Data: body, ETag: resp.Header.Get("ETag"), Changed: true}, nil
}

func (s *HTTPSession) UpdateManifest(ctx context.Context, href string, data []byte, ifMatch string, priority Priority) (*ManifestResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, bytes.NewReader(data))
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponseError(resp, false, false)
	}
	return &ManifestResult{ETag: resp.Header.Get("ETag"), Changed: true}, nil
}

func (s *HTTPSession) UploadComponent(ctx context.Context, href string, data []byte, ifMatch string, priority Priority) (*ComponentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, bytes.NewReader(data))
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponseError(resp, false, false)
	}
	return &ComponentResult{ETag: resp.Header.Get("ETag"), Length: int64(len(data))}, nil
}

func (s *HTTPSession) DownloadComponent(ctx context.Context, href string, priority Priority) (*ComponentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponseError(resp, false, true)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.ComponentReadFailure, err, "reading component response body")
	}
	return &ComponentResult{Data: body, ETag: resp.Header.Get("ETag"), Length: int64(len(body))}, nil
}

func (s *HTTPSession) DeleteComponent(ctx context.Context, href, ifMatch string, priority Priority) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, href, nil)
	if err != nil {
		return ClassifyTransportError(err)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponseError(resp, false, false)
	}
	return nil
}

func classifyResponseError(resp *http.Response, onPull, onComponentGet bool) error {
	body, _ := io.ReadAll(resp.Body)
	return ClassifyHTTPError(resp.StatusCode, resp.Header, body, onPull, onComponentGet)
}
