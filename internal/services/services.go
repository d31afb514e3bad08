package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/links"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
)

// Services aggregates the external collaborators used by the download service.
type Services struct {
	RecordStore records.RecordStore
	LinkSigner  links.LinkSigner
}

// NewServices creates service implementations based on configuration.
// pool is required when RECORD_STORE=postgres and ignored otherwise.
func NewServices(ctx context.Context, cfg *config.ServerEnvironment, pool *pgxpool.Pool) (*Services, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	s := &Services{
		LinkSigner: links.NewS3Signer(NewS3Client(awsCfg, cfg.AWSEndpointURL)),
	}

	switch cfg.RecordStore {
	case config.RecordStorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("RECORD_STORE=%s requires a database connection", config.RecordStorePostgres)
		}
		s.RecordStore = records.NewPostgresStore(pool, cfg.Table)
	case config.RecordStoreDynamoDB:
		s.RecordStore = records.NewDynamoStore(NewDynamoDBClient(awsCfg, cfg.AWSEndpointURL), cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported RECORD_STORE: %s", cfg.RecordStore)
	}

	return s, nil
}

// NewS3Client creates an S3 client. A non-empty endpoint switches to path-style addressing (localstack/minio).
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewDynamoDBClient creates a DynamoDB client, optionally pointed at endpoint.
func NewDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
