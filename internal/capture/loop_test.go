package capture_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"signscribe/internal/capture"
	"signscribe/internal/predict"
	"signscribe/internal/testsupport"
)

type scriptedPredictor struct {
	mu      sync.Mutex
	results []predict.Result
	errs    []error
	calls   int
}

func (p *scriptedPredictor) Predict(_ context.Context, dataURL string) (predict.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if !strings.HasPrefix(dataURL, "data:image/jpeg;base64,") {
		return predict.Result{}, errors.New("frame not encoded as jpeg data url")
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return predict.Result{}, p.errs[i]
	}
	if i < len(p.results) {
		return p.results[i], nil
	}
	return p.results[len(p.results)-1], nil
}

func predicted(label string, conf float64) predict.Result {
	return predict.Result{Status: predict.StatusPredicted, Prediction: &label, Confidence: conf}
}

type harness struct {
	loop    *capture.Loop
	ticks   chan time.Time
	updates chan capture.Snapshot
	stable  []string
}

func newHarness(t *testing.T, source capture.FrameSource, predictor capture.Predictor) *harness {
	t.Helper()
	h := &harness{ticks: make(chan time.Time), updates: make(chan capture.Snapshot, 64)}
	loop, err := capture.NewLoop(source, predictor, capture.Options{
		HistorySize: 10,
		Threshold:   0.6,
		Ticks:       h.ticks,
		OnStable:    func(label string) { h.stable = append(h.stable, label) },
		OnUpdate:    func(s capture.Snapshot) { h.updates <- s },
	}, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	h.loop = loop
	return h
}

func (h *harness) tick(t *testing.T) capture.Snapshot {
	t.Helper()
	h.ticks <- time.Now()
	select {
	case snap := <-h.updates:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick to complete")
		return capture.Snapshot{}
	}
}

func TestLoopEmitsStableLabelOnce(t *testing.T) {
	results := []predict.Result{{Status: predict.StatusCollecting}}
	for range 15 {
		results = append(results, predicted("Hello", 0.9))
	}
	h := newHarness(t, capture.NewStaticSource(testsupport.SolidFrame(16, 16, 128)), &scriptedPredictor{results: results})
	if err := h.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.loop.Stop()

	snap := h.tick(t)
	if snap.Status != capture.StatusCollecting || snap.State != capture.Capturing {
		t.Fatalf("unexpected collecting snapshot %+v", snap)
	}
	for i := 1; i <= 15; i++ {
		snap = h.tick(t)
	}
	if snap.State != capture.Stabilizing || snap.Label != "Hello" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Transcript) != 1 || snap.Transcript[0] != "Hello" {
		t.Fatalf("expected single Hello in transcript, got %v", snap.Transcript)
	}
	if len(h.stable) != 1 {
		t.Fatalf("expected one OnStable call, got %v", h.stable)
	}
}

func TestLoopKeepsTickingAfterAPIError(t *testing.T) {
	predictor := &scriptedPredictor{
		errs:    []error{&predict.StatusError{Code: 500, Detail: "boom"}},
		results: []predict.Result{{}, {Status: predict.StatusCollecting}},
	}
	h := newHarness(t, capture.NewStaticSource(testsupport.SolidFrame(8, 8, 10)), predictor)
	if err := h.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.loop.Stop()

	snap := h.tick(t)
	if !snap.Err || snap.State != capture.Error || !strings.HasPrefix(snap.Status, "API error:") {
		t.Fatalf("expected API error snapshot, got %+v", snap)
	}
	snap = h.tick(t)
	if snap.Err || snap.State != capture.Capturing || snap.Ticks != 2 {
		t.Fatalf("expected recovery on next tick, got %+v", snap)
	}
}

func TestLoopErrorStatusFromResponseBody(t *testing.T) {
	predictor := &scriptedPredictor{results: []predict.Result{{Status: predict.StatusFailed, Detail: "bad frame"}}}
	h := newHarness(t, capture.NewStaticSource(testsupport.SolidFrame(8, 8, 10)), predictor)
	if err := h.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.loop.Stop()

	if snap := h.tick(t); snap.Status != "API error: bad frame" || !snap.Err {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLoopRealTickerFiresDespiteFailures(t *testing.T) {
	predictor := &scriptedPredictor{errs: []error{errors.New("down"), errors.New("down"), errors.New("down"), errors.New("down")}, results: []predict.Result{{}}}
	loop, err := capture.NewLoop(capture.NewStaticSource(testsupport.SolidFrame(8, 8, 0)), predictor,
		capture.Options{Interval: 10 * time.Millisecond, Threshold: 0.6}, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for loop.Snapshot().Ticks < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("ticker stalled at %d ticks", loop.Snapshot().Ticks)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoopStartFailsWithoutCamera(t *testing.T) {
	h := newHarness(t, capture.NewStaticSource(), &scriptedPredictor{results: []predict.Result{{}}})
	err := h.loop.Start(context.Background())
	if !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	snap := h.loop.Snapshot()
	if snap.State != capture.Error || !snap.Err {
		t.Fatalf("expected error state, got %+v", snap)
	}
}

func TestLoopStopReleasesSource(t *testing.T) {
	source := capture.NewStaticSource(testsupport.SolidFrame(8, 8, 0))
	h := newHarness(t, source, &scriptedPredictor{results: []predict.Result{{Status: predict.StatusCollecting}}})
	if err := h.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.tick(t)
	if err := h.loop.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if snap := h.loop.Snapshot(); snap.State != capture.Idle {
		t.Fatalf("expected idle after stop, got %v", snap.State)
	}
	if _, err := source.Frame(context.Background()); !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("expected closed source, got %v", err)
	}
	if err := h.loop.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got %v", err)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to capture.State
		ok       bool
	}{
		{capture.Idle, capture.Capturing, true},
		{capture.Idle, capture.Stabilizing, false},
		{capture.Capturing, capture.Stabilizing, true},
		{capture.Capturing, capture.Error, true},
		{capture.Stabilizing, capture.Capturing, true},
		{capture.Error, capture.Capturing, true},
		{capture.Error, capture.Idle, true},
		{capture.Stabilizing, capture.Stabilizing, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestLoopFailHaltsTicking(t *testing.T) {
	source := capture.NewStaticSource(testsupport.SolidFrame(8, 8, 0))
	h := newHarness(t, source, &scriptedPredictor{results: []predict.Result{predicted("Hello", 0.9)}})
	if err := h.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.loop.Stop()

	if snap := h.tick(t); snap.State != capture.Stabilizing {
		t.Fatalf("expected stabilizing after first tick, got %+v", snap)
	}
	if err := h.loop.Fail("Camera unavailable: /dev/video0 removed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	select {
	case h.ticks <- time.Now():
		t.Fatal("loop consumed a tick after Fail")
	case <-time.After(50 * time.Millisecond):
	}

	snap := h.loop.Snapshot()
	if snap.State != capture.Error || !snap.Err || snap.Status != "Camera unavailable: /dev/video0 removed" {
		t.Fatalf("expected failure to persist, got %+v", snap)
	}
	if snap.Ticks != 1 {
		t.Fatalf("expected 1 tick, got %d", snap.Ticks)
	}
	if err := h.loop.Stop(); err != nil {
		t.Fatalf("Stop after Fail: %v", err)
	}
	if snap := h.loop.Snapshot(); snap.State != capture.Error {
		t.Fatalf("Stop after Fail changed state to %v", snap.State)
	}
}
