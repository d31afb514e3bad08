// Package links issues short-lived signed retrieval URLs for artifact objects.
//
// The validity period is fixed at one hour and is not configurable per request.
// Failures from the signing backend are logged and collapsed into a single
// Unavailable error so storage details never reach the caller.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
)

// Validity is how long an issued URL can be used.
const Validity = 3600 * time.Second

// LinkSigner produces a signed GET URL for an object.
type LinkSigner interface {
	PresignGet(ctx context.Context, bucket, objectKey string, ttl time.Duration) (string, error)
}

// SignedURL is a retrieval URL for one object. It is never cached or persisted.
type SignedURL struct {
	URL       string
	ObjectKey string
	ExpiresAt time.Time
}

// ErrorCode identifies why a link could not be issued.
type ErrorCode string

// ErrCodeUnavailable: the signing backend failed
const ErrCodeUnavailable ErrorCode = "unavailable"

// IssueError is returned by Issue for every failure.
type IssueError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *IssueError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *IssueError) Code() ErrorCode { return e.code }
func (e *IssueError) Unwrap() error   { return e.wrapped }

// WrapIssueError wraps a signing failure as an Unavailable IssueError.
func WrapIssueError(err error, msg string) error {
	return &IssueError{code: ErrCodeUnavailable, message: msg, wrapped: err}
}

// Issuer mints signed URLs for objects in a single bucket.
type Issuer struct {
	signer LinkSigner
	bucket string
	now    func() time.Time
}

func NewIssuer(signer LinkSigner, bucket string) *Issuer {
	return &Issuer{signer: signer, bucket: bucket, now: time.Now}
}

// Issue returns a URL granting read access to objectKey for Validity.
func (i *Issuer) Issue(ctx context.Context, objectKey string) (*SignedURL, error) {
	issuedAt := i.now()

	url, err := i.signer.PresignGet(ctx, i.bucket, objectKey, Validity)
	if err == nil && url == "" {
		err = fmt.Errorf("signer returned an empty URL")
	}
	if err != nil {
		logger.ContextRequestLogger(ctx).Error("failed to sign download URL",
			slog.String("bucket", i.bucket),
			slog.String("object_key", objectKey),
			slog.String("error", err.Error()))
		return nil, WrapIssueError(err, "download link unavailable")
	}

	return &SignedURL{
		URL:       url,
		ObjectKey: objectKey,
		ExpiresAt: issuedAt.Add(Validity),
	}, nil
}
