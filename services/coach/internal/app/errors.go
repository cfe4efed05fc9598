package app

import (
	"errors"
	"fmt"

	"swinglab/pkg/domain"
	"swinglab/pkg/quota"
)

// Every collaborator failure surfaces as exactly one of these kinds. All
// are per-request: the caller's remedy is to retry the specific action or
// give up, never to restart the process.
var (
	// ErrUploadFailed marks a blob-store write failure. No video record
	// exists when this is returned; the whole upload is safe to retry.
	ErrUploadFailed = errors.New("upload failed")
	// ErrPersistence marks a storage-layer failure: the metadata store, or
	// resolving a playback URL for an already-stored clip. Safe to retry.
	ErrPersistence = errors.New("persistence error")
	// ErrGenerationFailed marks a report-generator failure of any flavor:
	// transport, non-2xx, malformed body, upstream refusal. Analyze is
	// idempotent at the ledger, so retrying is always safe.
	ErrGenerationFailed = errors.New("report generation failed")
	// ErrVideoNotFound is returned when the video does not exist or is
	// owned by someone else.
	ErrVideoNotFound = errors.New("video not found")
)

// QuotaExceededError is returned when the rolling-week allowance is used
// up. It carries the numbers the UI needs for its message; nothing was
// written when this is returned.
type QuotaExceededError struct {
	Plan      domain.Plan
	Allowance int
	Used      int
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("weekly upload limit reached for the %s plan (%d uploads per rolling 7 days)",
		quota.Label(e.Plan), e.Allowance)
}
