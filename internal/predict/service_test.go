package predict

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

type fakeClassifier struct {
	scores []float32
	err    error
	calls  int
	window int
}

func (f *fakeClassifier) Classify(_ context.Context, window [][]float32) ([]float32, error) {
	f.calls++
	f.window = len(window)
	return f.scores, f.err
}

func testFrameURL(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.Gray{Y: 200})
	url, err := EncodeDataURL(img, 90)
	if err != nil {
		t.Fatalf("EncodeDataURL: %v", err)
	}
	return url
}

func newTestService(t *testing.T, classifier Classifier, opts Options) *Service {
	t.Helper()
	if opts.Labels == nil {
		opts.Labels = []string{"Alright", "Hello", "Indian", "Namaste", "Sign"}
	}
	if opts.SequenceLength == 0 {
		opts.SequenceLength = 30
	}
	if opts.Threshold == 0 {
		opts.Threshold = 0.6
	}
	svc, err := NewService(GridExtractor{Grid: 4}, classifier, opts, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceCollectsUntilWindowFull(t *testing.T) {
	clf := &fakeClassifier{scores: []float32{0.05, 0.8, 0.05, 0.05, 0.05}}
	svc := newTestService(t, clf, Options{})
	frame := testFrameURL(t)
	ctx := context.Background()

	for i := 1; i < 30; i++ {
		res, err := svc.Predict(ctx, "s1", frame)
		if err != nil {
			t.Fatalf("Predict %d: %v", i, err)
		}
		if res.Status != StatusCollecting || res.Prediction != nil || res.Frames != i {
			t.Fatalf("frame %d: unexpected result %+v", i, res)
		}
	}
	if clf.calls != 0 {
		t.Fatalf("classifier called before window full")
	}

	res, err := svc.Predict(ctx, "s1", frame)
	if err != nil {
		t.Fatalf("Predict full: %v", err)
	}
	if res.Status != StatusPredicted || res.Label() != "Hello" {
		t.Fatalf("unexpected result %+v", res)
	}
	if clf.window != 30 {
		t.Fatalf("classifier saw %d frames", clf.window)
	}

	res, _ = svc.Predict(ctx, "s1", frame)
	if res.Status != StatusPredicted || clf.calls != 2 {
		t.Fatalf("sliding window should keep predicting, got %+v calls=%d", res, clf.calls)
	}
}

func TestServiceBelowThresholdHasNoLabel(t *testing.T) {
	clf := &fakeClassifier{scores: []float32{0.6, 0.1, 0.1, 0.1, 0.1}}
	svc := newTestService(t, clf, Options{SequenceLength: 2})
	frame := testFrameURL(t)

	_, _ = svc.Predict(context.Background(), "s", frame)
	res, err := svc.Predict(context.Background(), "s", frame)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Status != StatusPredicted || res.Prediction != nil {
		t.Fatalf("expected predicted without label at threshold, got %+v", res)
	}
	if res.Confidence != 0.6 {
		t.Fatalf("unexpected confidence %v", res.Confidence)
	}
}

func TestServiceErrors(t *testing.T) {
	svc := newTestService(t, nil, Options{})
	if _, err := svc.Predict(context.Background(), "s", testFrameURL(t)); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}

	boom := errors.New("boom")
	svc = newTestService(t, &fakeClassifier{err: boom}, Options{SequenceLength: 1})
	if _, err := svc.Predict(context.Background(), "s", "not-an-image"); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if _, err := svc.Predict(context.Background(), "s", testFrameURL(t)); !errors.Is(err, boom) {
		t.Fatalf("expected classifier error, got %v", err)
	}
}

func TestServiceIsolatesAndExpiresSessions(t *testing.T) {
	clf := &fakeClassifier{scores: []float32{0, 1, 0, 0, 0}}
	svc := newTestService(t, clf, Options{SequenceLength: 2, IdleTimeout: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	frame := testFrameURL(t)
	ctx := context.Background()

	_, _ = svc.Predict(ctx, "a", frame)
	res, _ := svc.Predict(ctx, "b", frame)
	if res.Status != StatusCollecting {
		t.Fatalf("session b should not share a's window, got %+v", res)
	}
	if svc.Sessions() != 2 {
		t.Fatalf("expected 2 sessions, got %d", svc.Sessions())
	}

	now = now.Add(30 * time.Second)
	_, _ = svc.Predict(ctx, "a", frame)
	now = now.Add(45 * time.Second)
	if removed := svc.Sweep(); removed != 1 {
		t.Fatalf("expected one expired session, got %d", removed)
	}
	if svc.Sessions() != 1 {
		t.Fatalf("expected session a to survive")
	}
}

func TestServiceAllowRateLimitsPerSession(t *testing.T) {
	svc := newTestService(t, nil, Options{RatePerSecond: 0.001, Burst: 2})
	if !svc.Allow("a") || !svc.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if svc.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !svc.Allow("b") {
		t.Fatal("other sessions have their own limiter")
	}
}
