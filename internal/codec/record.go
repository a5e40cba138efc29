// Package codec defines the on-disk shape of a single log record and the
// means to encode and decode it. A generation log file is a flat stream
// of these records, one JSON object after another with no delimiter and
// no header — the decoder's job is to know where one record ends and the
// next begins.
package codec

import (
	"github.com/goccy/go-json"

	kvserrors "github.com/embedkv/kvs/pkg/errors"
)

// Kind identifies which variant a Record holds.
type Kind string

const (
	// KindSet records a key being bound to a value.
	KindSet Kind = "set"

	// KindRemove records a key's binding being deleted. Rm records carry
	// no value; they exist purely as a tombstone that the engine's
	// recovery replay (load) uses to drop the key from the in-memory index.
	KindRemove Kind = "rm"
)

// Record is a single entry in a generation log: either a key/value
// binding (KindSet) or a tombstone (KindRemove).
type Record struct {
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// NewSetRecord builds a Record representing a key/value write.
func NewSetRecord(key, value string) Record {
	return Record{Kind: KindSet, Key: key, Value: value}
}

// NewRemoveRecord builds a Record representing a tombstone.
func NewRemoveRecord(key string) Record {
	return Record{Kind: KindRemove, Key: key}
}

// Encode marshals a Record to its on-disk JSON representation. It does
// not append a newline or any other delimiter: record boundaries come
// from byte-count bookkeeping, not from the wire format.
func Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, kvserrors.NewCodecError(err, kvserrors.ErrorCodeCodec, "failed to encode record").
			WithOp("encode")
	}
	return b, nil
}

// DecodeOne unmarshals exactly one Record from a byte slice obtained by
// reading an entry's known Length at a known offset — used by Get,
// which already has the exact byte range from the index and has no
// need for streaming offset tracking.
func DecodeOne(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, kvserrors.NewCodecError(err, kvserrors.ErrorCodeCodec, "failed to decode record").
			WithOp("decode")
	}
	return r, nil
}

// RequireKind returns a *baseError wrapping ErrFaultyCommandInLog if got
// doesn't match want. Get calls this when the index points at a record
// that decodes successfully but isn't the Set record the index promised.
func RequireKind(got, want Kind, generation, offset int64) error {
	if got == want {
		return nil
	}
	return kvserrors.NewFaultyCommandError(generation, offset, string(got), string(want))
}
