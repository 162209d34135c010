package predict

import (
	"errors"
	"fmt"
)

const (
	StatusCollecting = "collecting"
	StatusPredicted  = "predicted"
	StatusFailed     = "error"

	// SessionHeader carries the client session identifier on /predict requests.
	SessionHeader = "X-Session-ID"
	// DefaultSessionID is the shared window used by clients that send no
	// session header.
	DefaultSessionID = "default"
)

var (
	// ErrModelUnavailable is returned when no classifier is loaded.
	ErrModelUnavailable = errors.New("model not initialized")
	// ErrInvalidImage is returned when a request does not carry a decodable image data URL.
	ErrInvalidImage = errors.New("invalid image data")
)

// Request is the body of a prediction call.
type Request struct {
	Image string `json:"image"`
}

// Result is the body of a prediction response. Prediction is null unless the
// classifier was confident enough.
type Result struct {
	Status     string  `json:"status"`
	Prediction *string `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
	Frames     int     `json:"frames,omitempty"`
}

// Label returns the predicted label or "" when there is none.
func (r Result) Label() string {
	if r.Prediction == nil {
		return ""
	}
	return *r.Prediction
}

// ErrorResult builds the error body returned alongside non-2xx statuses.
func ErrorResult(detail string) Result {
	return Result{Status: StatusFailed, Detail: detail}
}

// StatusError reports a non-2xx response from the prediction endpoint.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("prediction endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("prediction endpoint returned %d: %s", e.Code, e.Detail)
}
