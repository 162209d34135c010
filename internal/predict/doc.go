// Package predict turns webcam frames into sign labels.
//
// The server side keeps a sliding window of per-frame feature vectors for
// each client session and, once the window is full, classifies the whole
// sequence with an ONNX model. The client side posts data-URL encoded frames
// to a prediction endpoint and decodes the JSON verdict. Both sides share the
// wire types in this package.
package predict
