package links

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignAPI is the subset of s3.PresignClient used by S3Signer.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Signer implements LinkSigner with S3 presigned GetObject requests.
// Signing is local: no request is made to S3.
type S3Signer struct {
	presigner PresignAPI
}

// NewS3Signer creates a signer from an S3 client.
func NewS3Signer(client *s3.Client) *S3Signer {
	return &S3Signer{presigner: s3.NewPresignClient(client)}
}

// NewS3SignerWithPresigner creates a signer from any PresignAPI (used in tests).
func NewS3SignerWithPresigner(p PresignAPI) *S3Signer {
	return &S3Signer{presigner: p}
}

// PresignGet implements LinkSigner.
func (s *S3Signer) PresignGet(ctx context.Context, bucket, objectKey string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", bucket, objectKey, err)
	}
	return req.URL, nil
}
