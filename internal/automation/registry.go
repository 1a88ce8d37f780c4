package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionCodec decodes a persisted payload into a concrete action and encodes
// a concrete action's fields back to their persisted form. The registry adds
// the key/version envelope around the encoded fields.
type ActionCodec struct {
	Decode func(data []byte) (Action, error)
	Encode func(action Action) ([]byte, error)
}

type codecKey struct {
	key     string
	version int
}

// Registry maps (action key, schema version) to a codec. It is built once
// during process initialization and frozen; afterwards it is read-only and
// safe for unsynchronized concurrent reads.
type Registry struct {
	codecs map[codecKey]ActionCodec
	latest map[string]int
	frozen bool
}

// NewRegistry builds the registry with the full action catalogue and freezes
// it. Adding a new action kind means adding a registration here.
func NewRegistry() *Registry {
	r := &Registry{
		codecs: make(map[codecKey]ActionCodec),
		latest: make(map[string]int),
	}

	r.Register(ActionKeySetTimestamp, 1, ActionCodec{Decode: decodeSetTimestamp, Encode: encodeFields})
	r.Register(ActionKeySetDescription, 1, ActionCodec{Decode: decodeSetDescription, Encode: encodeFields})
	r.Register(ActionKeySetAmount, 1, ActionCodec{Decode: decodeSetAmount, Encode: encodeFields})

	r.frozen = true
	return r
}

// Register adds a codec for (key, version). It may only be called while the
// registry is being built; duplicates and post-freeze calls are process
// initialization bugs and panic.
func (r *Registry) Register(key string, version int, codec ActionCodec) {
	if r.frozen {
		panic(fmt.Sprintf("action registry is frozen, cannot register %s v%d", key, version))
	}
	ck := codecKey{key: key, version: version}
	if _, exists := r.codecs[ck]; exists {
		panic(fmt.Sprintf("duplicate action registration: %s v%d", key, version))
	}
	r.codecs[ck] = codec
	if version > r.latest[key] {
		r.latest[key] = version
	}
}

// actionHeader is the envelope portion of a persisted action payload.
// Version is optional; an absent version means "newest".
type actionHeader struct {
	Key     string `json:"key"`
	Version *int   `json:"version"`
}

// Decode resolves a persisted action payload to a concrete action.
//
// An absent version decodes with the latest registered codec for the key.
// An explicit version must resolve to a registered (key, version) pair or
// decoding fails with UNKNOWN_ACTION_TYPE; a registered but non-latest
// version fails with UNSUPPORTED_VERSION; there is no cross-version
// migration path. Neither failure is ever downgraded to a skip:
// the containing rule run aborts.
func (r *Registry) Decode(data []byte) (Action, error) {
	var header actionHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, ValidationError([]ErrorDetail{{
			Rule:    "action",
			Message: fmt.Sprintf("Malformed action payload: %v", err),
		}})
	}
	if header.Key == "" {
		return nil, ValidationError([]ErrorDetail{{
			Rule:    "action",
			Message: "Action payload is missing its key",
		}})
	}

	latest, known := r.latest[header.Key]
	if !known {
		return nil, UnknownActionTypeError(header.Key, header.Version)
	}

	version := latest
	if header.Version != nil {
		version = *header.Version
		if _, ok := r.codecs[codecKey{key: header.Key, version: version}]; !ok {
			return nil, UnknownActionTypeError(header.Key, header.Version)
		}
		if version != latest {
			return nil, UnsupportedVersionError(header.Key, version)
		}
	}

	codec := r.codecs[codecKey{key: header.Key, version: version}]
	return codec.Decode(data)
}

// Encode serializes an action to its persisted form. The envelope always
// carries the action's own key and version so a later Decode resolves to the
// same concrete type.
func (r *Registry) Encode(action Action) (json.RawMessage, error) {
	ck := codecKey{key: action.Key(), version: action.Version()}
	codec, ok := r.codecs[ck]
	if !ok {
		version := action.Version()
		return nil, UnknownActionTypeError(action.Key(), &version)
	}

	payload, err := codec.Encode(action)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", action.Key(), err)
	}

	// UseNumber keeps int64 amounts intact instead of routing them through
	// float64 on the way back out.
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", action.Key(), err)
	}
	fields["key"] = action.Key()
	fields["version"] = action.Version()

	return json.Marshal(fields)
}

// encodeFields is the default field encoder: the action struct's own JSON
// representation.
func encodeFields(action Action) ([]byte, error) {
	return json.Marshal(action)
}
