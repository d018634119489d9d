// Package dcxconfig parses the YAML configuration for a dcxsync client,
// version-gated the way the teacher's configuration package gates its own
// registry configuration, but scoped to this library's much smaller surface:
// where the object store lives, where local data is kept, how much transport
// concurrency to allow, whether to auto-reclaim unused local files, and a
// work queue discipline name, which is validated but not used by the
// transport.
package dcxconfig

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/adobe/dcxsync/dcxerrors"
	"github.com/adobe/dcxsync/transport"
)

// WorkQueue names a request scheduling discipline. Load validates it and
// fills in the default, but HTTPOptions does not pass it on:
// transport.HTTPSession has no request queue and sends each request when it
// is called, so neither value changes request order, and HTTPSession does
// not use transport.Priority either.
type WorkQueue string

const (
	// WorkQueueFIFO names first-in, first-out scheduling.
	WorkQueueFIFO WorkQueue = "fifo"
	// WorkQueuePriority names priority-ordered scheduling. This is the
	// default.
	WorkQueuePriority WorkQueue = "priority"
)

func (q WorkQueue) valid() bool {
	return q == WorkQueueFIFO || q == WorkQueuePriority
}

// Version is a major.minor tag gating Config's shape, the same role the
// teacher's configuration.Version plays for the registry config file.
type Version string

// CurrentVersion is the only Version this package currently parses.
const CurrentVersion Version = "1.0"

// Config is the parsed, defaulted client configuration.
type Config struct {
	Version Version `yaml:"version"`

	// Endpoint is the base URL composites are created/read under, passed
	// straight through to transport.HTTPOptions.BaseURL.
	Endpoint string `yaml:"endpoint"`

	// LocalRoot is the directory composite stores are rooted under
	// (localstore.Open's root argument).
	LocalRoot string `yaml:"localRoot"`

	// Concurrency bounds simultaneous in-flight transport requests.
	// Clamped to 1..5 by Load, mirroring transport.NewHTTPSession's own
	// clamp so a config that slips past validation still behaves safely.
	Concurrency int `yaml:"concurrency"`

	// AutoReclaim, when true, tells the host application to call
	// composite.Composite.RemoveUnusedLocalFiles after every accepted
	// push/pull instead of waiting for an explicit gc invocation.
	AutoReclaim bool `yaml:"autoReclaim"`

	// WorkQueue names a scheduling discipline; see WorkQueue for what it
	// does not affect. Empty means WorkQueuePriority.
	WorkQueue WorkQueue `yaml:"workQueue"`

	// Transport carries additional transport.HTTPOptions fields (e.g.
	// timeout) this package doesn't promote to the top level, the way the
	// teacher's cache/storage driver factories take a raw
	// map[string]interface{} "params" bag and mapstructure.Decode it into
	// their own options struct rather than growing the shared config type
	// per backend.
	Transport map[string]interface{} `yaml:"transport"`
}

// HTTPOptions builds transport.HTTPOptions from c: BaseURL and Concurrency
// come from the promoted fields, then Transport is decoded over the result
// the same way NewBlobDescriptorCacheProvider decodes its "params" bag, so
// a config author can set e.g. "transport: {timeout: 30s}" without this
// package needing a dedicated field for every transport knob.
func (c *Config) HTTPOptions() (transport.HTTPOptions, error) {
	opts := transport.HTTPOptions{
		BaseURL:     c.Endpoint,
		Concurrency: c.Concurrency,
	}
	if len(c.Transport) == 0 {
		return opts, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return transport.HTTPOptions{}, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "building transport options decoder")
	}
	if err := decoder.Decode(c.Transport); err != nil {
		return transport.HTTPOptions{}, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "decoding transport options")
	}
	return opts, nil
}

// defaults matches the teacher's practice of filling in a Configuration's
// unset fields after parse (configuration.go's Storage/Log/HTTP handling)
// rather than scattering zero-value checks through the rest of the code.
func (c *Config) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Concurrency > 5 {
		c.Concurrency = 5
	}
	if c.WorkQueue == "" {
		c.WorkQueue = WorkQueuePriority
	}
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return dcxerrors.New(dcxerrors.InvalidManifest, "config: endpoint is required")
	}
	if c.LocalRoot == "" {
		return dcxerrors.New(dcxerrors.InvalidManifest, "config: localRoot is required")
	}
	if !c.WorkQueue.valid() {
		return dcxerrors.New(dcxerrors.InvalidManifest, "config: unrecognized workQueue").
			WithContext("workQueue", string(c.WorkQueue))
	}
	return nil
}

// parseInfo is this package's (much smaller) analogue of the teacher's
// configuration.VersionedParseInfo table: one entry per Version this
// package knows how to read, each converting its on-disk shape into the
// current Config. There is exactly one entry today; a future format bump
// adds a sibling entry and a conversion function instead of breaking this
// one's shape.
type parseInfo struct {
	version Version
	convert func([]byte) (Config, error)
}

var parseTable = []parseInfo{
	{version: CurrentVersion, convert: parseV1_0},
}

func parseV1_0(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "parsing config yaml")
	}
	return c, nil
}

// Parse reads a Config out of data, dispatching on its version field the
// way configuration.Parser.Parse dispatches on VersionedParseInfo.Version,
// then fills defaults and validates.
func Parse(data []byte) (*Config, error) {
	var versioned struct {
		Version Version `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &versioned); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "parsing config version")
	}
	if versioned.Version == "" {
		versioned.Version = CurrentVersion
	}

	for _, pi := range parseTable {
		if pi.version != versioned.Version {
			continue
		}
		c, err := pi.convert(data)
		if err != nil {
			return nil, err
		}
		c.Version = pi.version
		c.defaults()
		if err := c.validate(); err != nil {
			return nil, err
		}
		return &c, nil
	}
	return nil, dcxerrors.New(dcxerrors.InvalidManifest, fmt.Sprintf("config: unsupported version %q", versioned.Version))
}

// Load reads and parses a Config from rd, the way configuration.Parse reads
// the registry's config.yml.
func Load(rd io.Reader) (*Config, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.FileReadFailure, err, "reading config")
	}
	return Parse(data)
}

// LoadFile opens path and parses it as a Config.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dcxerrors.New(dcxerrors.FileDoesNotExist, "config file does not exist").WithContext("path", path)
		}
		return nil, dcxerrors.Wrap(dcxerrors.FileReadFailure, err, "opening config file").WithContext("path", path)
	}
	defer f.Close()
	return Load(f)
}

// Marshal serializes c back to YAML, used by tests round-tripping a
// Config.
func Marshal(c *Config) ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "marshaling config")
	}
	return out, nil
}
