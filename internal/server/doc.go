// Package server exposes the SignScribe HTTP API: frame prediction for the
// live translator, account management, and the lesson catalogue.
//
// The server owns a single-instance lock under the data directory, logs every
// request through slog with a correlation id, and maps domain errors to HTTP
// statuses in one place. Prediction responses keep the translator's wire shape
// even on failure so capture clients can decode every answer the same way.
package server
