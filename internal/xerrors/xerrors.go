// Package xerrors defines the shared error taxonomy from spec §7, so every
// package (archive, cryxml, dataforge, instance, extractors) reports failures
// the caller can match with errors.Is against the same small set of
// sentinels, instead of ad-hoc string-typed errors per package.
package xerrors

import "errors"

var (
	// ErrNotReady: an API call happened before Open/LoadDataForge.
	ErrNotReady = errors.New("starforge: not ready")

	// ErrFormat: missing signature, unknown data type, unknown compression
	// method, or a zero-length mandatory field. Fatal to the current decode.
	ErrFormat = errors.New("starforge: format error")

	// ErrTruncation: buffer ran out mid-record. The current record is
	// abandoned; decoding may continue past it at the caller's discretion.
	ErrTruncation = errors.New("starforge: truncated data")

	// ErrDecryption: AES/Deflate/Zstd failure on a single entry. The
	// provider itself stays open and usable for other entries.
	ErrDecryption = errors.New("starforge: decryption or decompression failed")

	// ErrCycleBudget is not surfaced as an error to callers — depth-bound
	// cutoffs produce a skipped/symbolic marker instead — but is kept here
	// so internal code can signal "budget exceeded" uniformly if needed.
	ErrCycleBudget = errors.New("starforge: cycle/depth budget exceeded")

	// ErrMissing: entity/record/GUID not found. Callers normally receive a
	// typed "absent" value rather than this error; it exists for APIs that
	// have no sentinel zero value to return instead.
	ErrMissing = errors.New("starforge: not found")
)
