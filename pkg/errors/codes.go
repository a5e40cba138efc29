package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations: opening,
	// reading, writing, seeking, or deleting a generation log file.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// key or value doesn't meet the store's requirements (e.g. empty string).
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected failures that don't fit into
	// another category — bugs or invariant violations rather than normal
	// operational failures.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Log-specific error codes cover failure modes unique to the append-only
// log format and the in-memory index built from it.
const (
	// ErrorCodeCodec indicates a record could not be encoded or decoded as
	// valid JSON.
	ErrorCodeCodec ErrorCode = "CODEC_ERROR"

	// ErrorCodeFaultyCommandInLog indicates a decoded record's variant is
	// inconsistent with its callsite — e.g. Get expected a Set record but
	// found a Remove, or the stream contains an unrecognized tag.
	ErrorCodeFaultyCommandInLog ErrorCode = "FAULTY_COMMAND_IN_LOG"

	// ErrorCodeNonExistentKey indicates Remove was called on a key with no
	// current mapping.
	ErrorCodeNonExistentKey ErrorCode = "NON_EXISTENT_KEY"

	// ErrorCodeEnginePoisoned indicates the index references a generation
	// with no live reader — a corruption of engine state from which the
	// engine cannot recover within the current process.
	ErrorCodeEnginePoisoned ErrorCode = "ENGINE_POISONED"
)
