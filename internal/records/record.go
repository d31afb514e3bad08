package records

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the processing state of an artifact record as written by the pipeline.
// Values outside the known set are preserved verbatim.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// Known reports whether s is one of the statuses the pipeline is documented to write.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// RecordKey is the composite identifier of an artifact record.
type RecordKey struct {
	// Identity is the verified email claim of the caller (partition key)
	Identity string

	// UploadRef identifies the upload within the caller's records (sort key)
	UploadRef string
}

// ID returns the canonical "<identity>_<uploadRef>" form returned to callers as record_id.
func (k RecordKey) ID() string {
	return k.Identity + referenceSeparator + k.UploadRef
}

// Record is an artifact record.
type Record struct {
	Key RecordKey

	// ObjectKey is the storage key of the produced artifact; empty while processing
	ObjectKey string

	Status Status
}

// Ready reports whether the artifact has been produced.
func (r *Record) Ready() bool {
	return r.ObjectKey != ""
}

// ErrRecordNotFound is returned by a RecordStore when no record exists for the key.
var ErrRecordNotFound = errors.New("record not found")

const referenceSeparator = "_"

// ParseReference returns the upload reference of a caller-supplied record reference.
// The reference is split on its LAST separator and everything before it is discarded.
// References without a separator or with an empty suffix are rejected.
func ParseReference(callerRef string) (string, error) {
	i := strings.LastIndex(callerRef, referenceSeparator)
	if i < 0 {
		return "", NewResolveError(ErrCodeInvalidReference, fmt.Sprintf("reference %q has no %q separator", callerRef, referenceSeparator))
	}
	uploadRef := callerRef[i+len(referenceSeparator):]
	if uploadRef == "" {
		return "", NewResolveError(ErrCodeInvalidReference, fmt.Sprintf("reference %q has an empty upload reference", callerRef))
	}
	return uploadRef, nil
}
