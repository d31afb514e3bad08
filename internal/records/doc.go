// Package records resolves the artifact record a caller is asking for.
//
// **authorization boundary**
// A caller reference such as "alice@x.com_1234" is split on its last '_' and only the
// suffix (the upload reference) is kept. The identity half of the RecordKey is always
// the verified email from the caller's token, so a caller can only ever read records
// stored under their own identity.
//
// **stores**
// RecordStore is implemented by DynamoStore (table keyed by idEmail/idUpload, the format
// written by the processing pipeline) and PostgresStore (artifact_records table, see
// internal/database/migrations).
//
// **readiness**
// A record without an object key is still being produced. The resolver reports this as
// NotReady carrying the record's status, which is distinct from NotFound.
package records
