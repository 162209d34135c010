// Package docstore keeps collections of JSON documents in a SQL database.
//
// Each document is addressed by (collection, id) and carries a JSON object
// payload. The store runs on embedded SQLite for single-host installs and on
// PostgreSQL for shared deployments; both share one table layout and the same
// query surface. Batches apply up to MaxBatchSize writes in a single
// transaction and back the snapshot restore path.
package docstore
