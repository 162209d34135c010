// Package preflight provides readiness checks for the filesystem paths,
// database, model files and services SignScribe depends on.
//
// These checks run in two contexts:
//   - signscribed calls RunServer at startup and logs every failure so an
//     operator sees a missing model or unwritable directory before the
//     first request arrives.
//   - The CLI "signscribe check" command calls RunAll and renders the
//     results, including the camera and the prediction endpoint.
//
// Checks for optional features are skipped when the feature is not
// configured.
package preflight
