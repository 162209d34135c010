// Package backup exports every document collection into a timestamped
// snapshot folder of JSON files and restores a chosen snapshot in batches.
//
// A snapshot is a directory named backup-<UTC ISO-8601 timestamp with ':'
// replaced by '-'> holding one <collection>.json file per non-empty
// collection. Each file is a two-space indented array of {id, data} records.
// Restores write through docstore batches so a collection is applied in
// transactions of at most docstore.MaxBatchSize documents.
package backup
