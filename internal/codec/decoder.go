package codec

import (
	"encoding/json"
	"io"

	kvserrors "github.com/embedkv/kvs/pkg/errors"
)

// Decoder streams Records out of a generation log and reports, after
// each successful decode, how many bytes of the underlying stream that
// record consumed. That contract — consumed-bytes-after-decode — is
// exactly what recovery and compaction need to rebuild index pointers
// without re-scanning the file byte by byte, and it's also exactly what
// encoding/json.Decoder.InputOffset exposes natively. goccy/go-json
// handles every other encode/decode path in this package; this one
// stays on the standard decoder because no faster alternative reports
// offsets without hand-rolled framing.
type Decoder struct {
	dec *json.Decoder
	pos int64
}

// NewDecoder wraps r to decode a sequential stream of Records starting
// at whatever position r is currently at.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next Record from the stream. It returns io.EOF once
// the stream is exhausted with no partial record pending, and
// io.ErrUnexpectedEOF if the stream ends in the middle of a record — the
// shape a crash mid-append or mid-compaction leaves behind. Callers
// replaying a generation log for recovery treat both the same way: stop
// here, keep everything decoded so far. Any other decode failure (a
// malformed but complete record) is a genuine CodecError. Decode does not
// check a record's Kind; callers reject a kind they did not expect with
// ErrFaultyCommandInLog.
func (d *Decoder) Decode() (Record, error) {
	var r Record
	if err := d.dec.Decode(&r); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return Record{}, io.ErrUnexpectedEOF
		}
		return Record{}, kvserrors.NewCodecError(err, kvserrors.ErrorCodeCodec, "failed to decode record stream").
			WithOp("decode_stream")
	}
	d.pos = d.dec.InputOffset()
	return r, nil
}

// InputOffset returns the stream offset immediately after the most
// recently decoded record — i.e. the byte position the next record
// starts at.
func (d *Decoder) InputOffset() int64 {
	return d.pos
}
