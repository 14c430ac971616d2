package grabber

import "errors"

// Static error definitions for better error handling.
var (
	// ErrEmptyURL indicates that the target URL is empty.
	ErrEmptyURL = errors.New("target URL cannot be empty")
	// ErrEmptyOutputDir indicates that the target output directory is empty.
	ErrEmptyOutputDir = errors.New("output directory cannot be empty")
	// ErrAcquisitionInProgress indicates that another acquisition is still running.
	ErrAcquisitionInProgress = errors.New("an acquisition is already in progress")
	// ErrRetriesExhausted indicates that a retryable operation ran out of attempts.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")
	// ErrTagFileNotFound indicates that the file to tag does not exist.
	ErrTagFileNotFound = errors.New("file to tag not found")
	// ErrUnsupportedTagFormat indicates that tags cannot be written to the file format.
	ErrUnsupportedTagFormat = errors.New("unsupported tag format")
	// ErrNotifierUnavailable indicates that no desktop notification service is available.
	ErrNotifierUnavailable = errors.New("desktop notifier unavailable")
)
