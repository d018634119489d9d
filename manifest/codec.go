package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/adobe/dcxsync/dcxerrors"
)

// knownTopLevelKeys lists the JSON keys Document's typed fields already
// cover, so UnmarshalJSON can fill Unknown with everything else.
var knownTopLevelKeys = map[string]struct{}{
	"id": {}, "name": {}, "type": {}, "created": {}, "modified": {},
	"state": {}, "etag": {}, "components": {}, "children": {}, "_links": {},
	"_local": {}, "_formatVersion": {},
}

// versioned is used to sniff the stored format version before deciding how
// to decode the rest of the document.
type versioned struct {
	Local *struct {
		Version int `json:"version"`
	} `json:"_local"`
}

// Parse reads a manifest document from bytes, validating required
// top-level fields and migrating older format versions forward.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, dcxerrors.New(dcxerrors.MissingJSONData, "manifest document is empty")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "manifest is not valid JSON")
	}

	var v versioned
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "failed reading _local.version")
	}
	fromVersion := 1
	if v.Local != nil && v.Local.Version > 0 {
		fromVersion = v.Local.Version
	}

	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "failed decoding manifest fields")
	}
	doc := Document(a)

	if doc.Name == "" {
		return nil, dcxerrors.New(dcxerrors.InvalidManifest, "manifest is missing required field \"name\"")
	}
	if doc.Type == "" {
		return nil, dcxerrors.New(dcxerrors.InvalidManifest, "manifest is missing required field \"type\"")
	}

	doc.Unknown = make(map[string]any)
	for key, value := range raw {
		if _, known := knownTopLevelKeys[key]; known {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, fmt.Sprintf("failed decoding unknown key %q", key))
		}
		doc.Unknown[key] = v
	}

	if err := migrate(&doc, fromVersion, CurrentFormatVersion); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Serialize writes doc back to bytes in the requested flavor.
func Serialize(doc *Document, flavor Flavor) ([]byte, error) {
	out := *doc
	if flavor == FlavorRemote {
		out.Local = nil
	}

	type alias Document
	base, err := json.Marshal(alias(out))
	if err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "failed encoding manifest")
	}

	if len(out.Unknown) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, "failed re-decoding manifest for merge")
	}
	for key, value := range out.Unknown {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, dcxerrors.Wrap(dcxerrors.InvalidManifest, err, fmt.Sprintf("failed encoding unknown key %q", key))
		}
		merged[key] = encoded
	}
	return json.Marshal(merged)
}
