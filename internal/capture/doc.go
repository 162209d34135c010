// Package capture runs the webcam translation loop.
//
// A Loop grabs a frame from a FrameSource on every tick, posts it to a
// Predictor as a JPEG data URL, and feeds labelled answers through a
// smoothing.Stabilizer. Stable labels are appended to the transcript and
// handed to the OnStable callback. Errors flip the loop into the Error state
// and set the status text; ticking continues at the configured period until
// Stop is called.
package capture
