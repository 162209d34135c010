package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"signscribe/internal/logging"
	"signscribe/internal/predict"
	"signscribe/internal/smoothing"
)

const (
	StatusIdle       = "Idle"
	StatusStarting   = "Starting camera..."
	StatusCollecting = "Collecting frames..."
	StatusWaiting    = "Waiting for camera frame..."
	StatusLowConf    = "Low confidence"
	StatusStopped    = "Stopped"
)

// Predictor classifies one encoded frame.
type Predictor interface {
	Predict(ctx context.Context, dataURL string) (predict.Result, error)
}

// Options configures a Loop.
type Options struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	HistorySize    int
	Threshold      float64
	JPEGQuality    int

	// Ticks replaces the internal ticker when set.
	Ticks <-chan time.Time
	// OnStable receives each newly accepted label.
	OnStable func(label string)
	// OnUpdate receives a snapshot after every processed tick.
	OnUpdate func(Snapshot)
}

// Snapshot is a point-in-time copy of the loop's observable state.
type Snapshot struct {
	State      State
	Status     string
	Err        bool
	Label      string
	Confidence float64
	Transcript []string
	Ticks      int
}

// Loop drives capture, prediction and smoothing on a fixed period.
type Loop struct {
	source    FrameSource
	predictor Predictor
	opts      Options
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	status     string
	errFlag    bool
	label      string
	confidence float64
	transcript []string
	ticks      int
	stabilizer *smoothing.Stabilizer
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewLoop builds a loop over source and predictor.
func NewLoop(source FrameSource, predictor Predictor, opts Options, logger *slog.Logger) (*Loop, error) {
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 150 * time.Millisecond
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 10
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	return &Loop{
		source:     source,
		predictor:  predictor,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "capture"),
		state:      Idle,
		status:     StatusIdle,
		stabilizer: smoothing.NewStabilizer(opts.HistorySize, opts.Threshold),
	}, nil
}

// Start opens the frame source and begins ticking. A source that cannot be
// opened leaves the loop in the Error state.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return errors.New("capture loop already running")
	}
	l.status = StatusStarting
	l.mu.Unlock()

	if err := l.source.Open(ctx); err != nil {
		if !errors.Is(err, ErrCameraUnavailable) {
			err = fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		}
		l.fail(fmt.Sprintf("Camera unavailable: %v", err))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.setStateLocked(Capturing)
	l.errFlag = false
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	ticks := l.opts.Ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(l.opts.Interval)
		ticks = ticker.C
	}
	l.logger.Info("capture loop started", logging.Duration("interval", l.opts.Interval))

	go func() {
		defer close(done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				l.tick(runCtx)
			}
		}
	}()
	return nil
}

// Stop halts ticking, waits for an in-flight tick and releases the source.
func (l *Loop) Stop() error {
	stopped, err := l.halt()
	if !stopped {
		return nil
	}
	l.mu.Lock()
	l.setStateLocked(Idle)
	l.status = StatusStopped
	l.mu.Unlock()
	l.logger.Info("capture loop stopped")
	return err
}

// Fail stops the loop and leaves it in the Error state with reason as
// status, e.g. when the camera is unplugged. Start may be called again.
func (l *Loop) Fail(reason string) error {
	_, err := l.halt()
	l.fail(reason)
	l.logger.Info("capture loop halted", logging.String("reason", reason))
	return err
}

// halt cancels the tick goroutine, waits for an in-flight tick and
// releases the source. It reports whether the loop was running.
func (l *Loop) halt() (bool, error) {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return false, nil
	}
	cancel()
	<-done
	return true, l.source.Close()
}

// Snapshot returns a copy of the observable state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Loop) snapshotLocked() Snapshot {
	return Snapshot{
		State:      l.state,
		Status:     l.status,
		Err:        l.errFlag,
		Label:      l.label,
		Confidence: l.confidence,
		Transcript: slices.Clone(l.transcript),
		Ticks:      l.ticks,
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.mu.Lock()
	l.ticks++
	l.mu.Unlock()

	frame, err := l.source.Frame(ctx)
	if errors.Is(err, ErrNoFrame) {
		l.update(func() { l.status = StatusWaiting })
		return
	}
	if err != nil {
		l.fail(fmt.Sprintf("Camera error: %v", err))
		return
	}
	dataURL, err := predict.EncodeDataURL(frame, l.opts.JPEGQuality)
	if err != nil {
		l.fail(fmt.Sprintf("Encode error: %v", err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.opts.RequestTimeout)
	result, err := l.predictor.Predict(reqCtx, dataURL)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(l.logger, "prediction request failed", "predict_request_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the prediction endpoint is running"),
			logging.String(logging.FieldImpact, "frame skipped; next tick proceeds"),
		)
		l.fail(fmt.Sprintf("API error: %v", err))
		return
	}
	l.apply(result)
}

func (l *Loop) apply(result predict.Result) {
	var stable string
	l.update(func() {
		switch result.Status {
		case predict.StatusCollecting:
			l.errFlag = false
			l.setStateLocked(Capturing)
			l.status = StatusCollecting
		case predict.StatusPredicted:
			l.errFlag = false
			l.setStateLocked(Stabilizing)
			l.confidence = result.Confidence
			label := result.Label()
			if label == "" {
				l.status = StatusLowConf
				return
			}
			l.label = label
			l.status = fmt.Sprintf("Detected: %s (%.0f%%)", label, result.Confidence*100)
			if accepted, ok := l.stabilizer.Observe(label, result.Confidence); ok {
				l.transcript = append(l.transcript, accepted)
				stable = accepted
			}
		default:
			l.errFlag = true
			l.setStateLocked(Error)
			l.status = fmt.Sprintf("API error: %s", result.Detail)
		}
	})
	if stable != "" {
		l.logger.Info("stable sign", logging.String("label", stable))
		if l.opts.OnStable != nil {
			l.opts.OnStable(stable)
		}
	}
}

func (l *Loop) fail(status string) {
	l.update(func() {
		l.errFlag = true
		l.setStateLocked(Error)
		l.status = status
	})
}

// update mutates state under the lock and publishes the resulting snapshot.
func (l *Loop) update(fn func()) {
	l.mu.Lock()
	fn()
	snap := l.snapshotLocked()
	l.mu.Unlock()
	if l.opts.OnUpdate != nil {
		l.opts.OnUpdate(snap)
	}
}

func (l *Loop) setStateLocked(next State) {
	if !l.state.CanTransition(next) {
		l.logger.Debug("ignored state transition",
			logging.String("from", l.state.String()),
			logging.String("to", next.String()),
			logging.Error(ErrInvalidTransition),
		)
		return
	}
	l.state = next
}
