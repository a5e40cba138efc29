// This package addresses the fundamental challenge that generic error handling presents in complex
// systems: when an error occurs, developers and operators need much more than just "something went wrong."
// They need to understand exactly what failed, why it failed, where it failed, and most importantly,
// what they can do about it. This package transforms error handling from reactive debugging into
// proactive problem resolution.
//
// Architecture and Design Philosophy:
//
// The error system is built around a hierarchical structure that starts with a foundational baseError
// and extends into domain-specific error types. This design provides several key advantages:
// it maintains consistency across all error types while allowing specialized context for different
// domains, enables rich error chaining that preserves the complete failure context, supports
// programmatic error handling through standardized error codes, and facilitates comprehensive
// logging and monitoring through structured error details.
//
// The system recognizes that different parts of a storage application fail in fundamentally different
// ways and require different types of contextual information for effective diagnosis and recovery.
// A validation error needs to know which field failed and what rule was violated. An IO error
// needs to know which generation file and byte offset were involved. A codec error needs to know
// which operation was being performed when decoding broke down. By capturing this domain-specific
// context at the point of failure, the system enables much more intelligent error handling
// throughout the application stack.
//
// Error Classification and Codes:
//
// Central to this system is a comprehensive error code taxonomy that provides standardized
// categorization of failures. These codes serve multiple purposes: they enable programmatic
// error handling that doesn't rely on parsing error messages, they provide consistent
// categorization for monitoring and alerting systems, they facilitate error recovery logic
// by identifying specific failure modes, and they support internationalization by separating
// error identification from error presentation.
//
// The error codes are organized into several categories. Base codes cover fundamental failure
// types that can occur in any system: IO_ERROR for input/output failures, INVALID_INPUT for
// client-side validation problems, and INTERNAL_ERROR for unexpected system failures. Log-specific
// codes handle the unique failure modes of the append-only log format: CODEC_ERROR for malformed
// records, FAULTY_COMMAND_IN_LOG for records whose kind doesn't match their callsite,
// NON_EXISTENT_KEY for removals of keys with no mapping, and ENGINE_POISONED for the
// unrecoverable condition where the index references a generation with no live reader.
//
// Usage Patterns and Best Practices:
//
// This error handling system is designed to support several key usage patterns that improve
// both developer experience and operational visibility.
//
// For error creation, the package encourages building errors with comprehensive context at
// the point of failure. This means capturing not just what went wrong, but where it went
// wrong, what was being attempted, and what conditions led to the failure. The fluent
// interface pattern makes this context capture both readable and maintainable.
//
// For error handling, the package supports both programmatic error handling (using error
// codes and type detection) and human-readable error reporting (using structured messages
// and details). This dual approach enables both robust automated error recovery and
// effective human troubleshooting.
//
// For error propagation, the package encourages preserving error context as errors flow
// through system layers while adding layer-specific context when appropriate. This creates
// a comprehensive audit trail of what happened during a failure, making root cause analysis
// much more effective.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or contains one in its error chain.
//
// Example usage:
//
//	if errors.IsValidationError(err) {
//	    // Handle validation-specific error recovery
//	}
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsIOError determines if an error is related to reading, writing, or
// removing a generation log file. IO errors often require different
// handling strategies than other error types because they may indicate
// hardware issues, capacity problems, or data integrity concerns that
// need immediate attention.
//
// Example usage:
//
//	if errors.IsIOError(err) {
//	    ioErr, _ := errors.AsIOError(err)
//	    switch ioErr.Code() {
//	    case ErrorCodeIO:
//	        alertAdministrator(ioErr.Path())
//	    }
//	}
func IsIOError(err error) bool {
	var ie *IOError
	return stdErrors.As(err, &ie)
}

// IsCodecError identifies errors that occurred while encoding or decoding
// a log record. A record that decodes but whose kind doesn't match what
// the callsite expected is reported as ErrFaultyCommandInLog instead, and
// is not a CodecError.
//
// Example usage:
//
//	if errors.IsCodecError(err) {
//	    codecErr, _ := errors.AsCodecError(err)
//	    log.Warn("malformed record", "op", codecErr.Op())
//	}
func IsCodecError(err error) bool {
	var ce *CodecError
	return stdErrors.As(err, &ce)
}

// IsNonExistentKey reports whether err is or wraps ErrNonExistentKey.
func IsNonExistentKey(err error) bool {
	return stdErrors.Is(err, ErrNonExistentKey)
}

// IsEnginePoisoned reports whether err is or wraps ErrEnginePoisoned.
func IsEnginePoisoned(err error) bool {
	return stdErrors.Is(err, ErrEnginePoisoned)
}

// AsValidationError safely extracts a ValidationError from an error chain, providing access
// to validation-specific context such as which field failed, what rule was violated, and
// what values were provided versus expected. This extraction is essential for building
// meaningful error responses that help clients understand and correct their input.
//
// Example usage:
//
//	if validationErr, ok := errors.AsValidationError(err); ok {
//	    logData := map[string]interface{}{
//	        "field": validationErr.Field(),
//	        "rule": validationErr.Rule(),
//	    }
//	    logger.Error("Validation failed", logData)
//	}
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsIOError extracts IOError context from an error chain, providing access to
// the generation file path, generation number, and byte offset involved.
// This context is crucial for implementing recovery procedures and for
// providing detailed information to operators.
//
// Example usage:
//
//	if ioErr, ok := errors.AsIOError(err); ok {
//	    errorContext := map[string]interface{}{
//	        "generation": ioErr.Generation(),
//	        "offset": ioErr.Offset(),
//	        "path": ioErr.Path(),
//	        "errorCode": ioErr.Code(),
//	    }
//	    handleIOFailure(errorContext)
//	}
func AsIOError(err error) (*IOError, bool) {
	var ie *IOError
	if stdErrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// AsCodecError extracts CodecError context, providing access to the codec
// operation that failed.
//
// Example usage:
//
//	if codecErr, ok := errors.AsCodecError(err); ok {
//	    log.Error("codec failure", "op", codecErr.Op())
//	}
func AsCodecError(err error) (*CodecError, bool) {
	var ce *CodecError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or returns
// ErrorCodeInternal for errors that don't have specific codes. This function provides
// a consistent way to categorize errors for monitoring and handling purposes.
//
// Example usage:
//
//	errorCode := errors.GetErrorCode(err)
//	metrics.IncrementErrorCounter(string(errorCode))
func GetErrorCode(err error) ErrorCode {
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}

	if ie, ok := AsIOError(err); ok {
		return ie.Code()
	}

	if ce, ok := AsCodecError(err); ok {
		return ce.Code()
	}

	var be *baseError
	if stdErrors.As(err, &be) {
		return be.Code()
	}

	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports them,
// returning an empty map for errors without details. This function provides consistent
// access to additional error context regardless of the specific error type.
//
// Example usage:
//
//	details := errors.GetErrorDetails(err)
//	if len(details) > 0 {
//	    logger.WithFields(details).Error("Operation failed", "error", err.Error())
//	}
func GetErrorDetails(err error) map[string]any {
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}

	if ie, ok := AsIOError(err); ok {
		if details := ie.Details(); details != nil {
			return details
		}
	}

	if ce, ok := AsCodecError(err); ok {
		if details := ce.Details(); details != nil {
			return details
		}
	}

	var be *baseError
	if stdErrors.As(err, &be) {
		if details := be.Details(); details != nil {
			return details
		}
	}

	return make(map[string]any)
}

// ClassifyDirectoryCreationError analyzes data directory creation failures and
// returns appropriate error codes based on the underlying system error. This
// helps clients understand exactly what went wrong and how they might fix it.
func ClassifyDirectoryCreationError(err error, path string) error {
	if os.IsPermission(err) {
		return NewIOError(err, "insufficient permissions to create data directory").
			WithPath(path).
			WithDetail("operation", "directory_creation").
			WithDetail("suggestion", "check directory permissions or run with elevated privileges")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewIOError(err, "insufficient disk space to create data directory").
					WithPath(path).
					WithDetail("operation", "directory_creation").
					WithDetail("suggestion", "free up disk space or choose a different location")
			case syscall.EROFS:
				return NewIOError(err, "cannot create directory on read-only filesystem").
					WithPath(path).
					WithDetail("operation", "directory_creation").
					WithDetail("suggestion", "remount filesystem with write permissions")
			}
		}
	}

	return NewIOError(err, "failed to create data directory").
		WithPath(path).WithDetail("operation", "directory_creation")
}

// ClassifyFileOpenError analyzes generation log open failures and returns
// appropriate error codes based on the underlying system error. This provides
// much more specific information than a generic I/O error.
func ClassifyFileOpenError(err error, path string, generation int64) error {
	if os.IsPermission(err) {
		return NewIOError(err, "insufficient permissions to open generation log").
			WithPath(path).
			WithGeneration(generation).
			WithDetail("operation", "file_open").
			WithDetail("suggestion", "check file permissions or run with elevated privileges")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewIOError(err, "insufficient disk space to create generation log").
					WithPath(path).
					WithGeneration(generation).
					WithDetail("operation", "file_open").
					WithDetail("suggestion", "free up disk space")
			case syscall.EROFS:
				return NewIOError(err, "cannot create file on read-only filesystem").
					WithPath(path).
					WithGeneration(generation).
					WithDetail("operation", "file_open").
					WithDetail("suggestion", "remount filesystem with write permissions")
			}
		}
	}

	return NewIOError(err, "failed to open generation log").
		WithPath(path).
		WithGeneration(generation).
		WithDetail("operation", "file_open").
		WithDetail("flags", []string{"O_CREATE", "O_RDWR", "O_APPEND"})
}

// ClassifySyncError analyzes sync operation failures and returns appropriate
// error codes. Sync failures can indicate various underlying issues from
// disk space problems to filesystem corruption.
func ClassifySyncError(err error, path string, generation int64, offset int64) error {
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewIOError(err, "cannot sync generation log: insufficient disk space").
					WithPath(path).
					WithGeneration(generation).
					WithOffset(offset).
					WithDetail("operation", "file_sync").
					WithDetail("suggestion", "free up disk space before continuing")
			case syscall.EROFS:
				return NewIOError(err, "cannot sync generation log: filesystem is read-only").
					WithPath(path).
					WithGeneration(generation).
					WithOffset(offset).
					WithDetail("operation", "file_sync").
					WithDetail("suggestion", "remount filesystem with write permissions")
			case syscall.EIO:
				return NewIOError(err, "I/O error during generation log sync").
					WithPath(path).
					WithGeneration(generation).
					WithOffset(offset).
					WithDetail("operation", "file_sync").
					WithDetail("severity", "high").
					WithDetail("suggestion", "check filesystem integrity and hardware health")
			}
		}
	}

	return NewIOError(err, "failed to sync generation log to disk").
		WithPath(path).WithGeneration(generation).WithOffset(offset).
		WithDetail("operation", "file_sync")
}
