// Package services builds the external collaborators of the download service.
//
// Each collaborator is an interface (records.RecordStore, links.LinkSigner) with an
// implementation selected via configuration: DynamoDB or Postgres for records,
// S3 presigning for links. AWS_ENDPOINT_URL points the AWS clients at localstack/minio.
package services
