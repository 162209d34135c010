package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"signscribe/internal/logging"
	"signscribe/internal/smoothing"
)

// Options configures a Service.
type Options struct {
	Labels         []string
	SequenceLength int
	Threshold      float64
	IdleTimeout    time.Duration
	RatePerSecond  float64
	Burst          int
}

type session struct {
	window   *smoothing.Ring[[]float32]
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Service keeps one feature window per client session and classifies it once full.
type Service struct {
	extractor  Extractor
	classifier Classifier
	labels     Labels
	opts       Options
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService builds a prediction service. A nil classifier leaves the service
// answering ErrModelUnavailable.
func NewService(extractor Extractor, classifier Classifier, opts Options, logger *slog.Logger) (*Service, error) {
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if len(opts.Labels) == 0 {
		return nil, errors.New("at least one label is required")
	}
	if opts.SequenceLength <= 0 {
		return nil, errors.New("sequence length must be positive")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	return &Service{
		extractor:  extractor,
		classifier: classifier,
		labels:     Labels(opts.Labels),
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "predict"),
		now:        time.Now,
		sessions:   make(map[string]*session),
	}, nil
}

// Ready reports whether a classifier is loaded.
func (s *Service) Ready() bool {
	return s.classifier != nil
}

// Allow reports whether the session may issue another request now.
func (s *Service) Allow(sessionID string) bool {
	if s.opts.RatePerSecond <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked(sessionID).limiter.Allow()
}

// Predict decodes one frame, appends its features to the session window and
// classifies the window when it is full.
func (s *Service) Predict(ctx context.Context, sessionID, dataURL string) (Result, error) {
	if s.classifier == nil {
		return Result{}, ErrModelUnavailable
	}
	img, err := DecodeDataURL(dataURL)
	if err != nil {
		return Result{}, err
	}
	features, err := s.extractor.Extract(img)
	if err != nil {
		return Result{}, fmt.Errorf("extract features: %w", err)
	}

	s.mu.Lock()
	sess := s.sessionLocked(sessionID)
	sess.window.Push(features)
	frames := sess.window.Len()
	var window [][]float32
	if sess.window.Full() {
		window = make([][]float32, 0, frames)
		sess.window.All(func(f []float32) bool {
			window = append(window, f)
			return true
		})
	}
	s.mu.Unlock()

	if window == nil {
		s.logger.Debug("collecting frames",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int("frames", frames),
			logging.Int("needed", s.opts.SequenceLength),
		)
		return Result{Status: StatusCollecting, Frames: frames}, nil
	}

	scores, err := s.classifier.Classify(ctx, window)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}
	label, confidence, err := s.labels.Best(scores)
	if err != nil {
		return Result{}, err
	}

	result := Result{Status: StatusPredicted, Confidence: confidence, Frames: frames}
	if confidence > s.opts.Threshold {
		result.Prediction = &label
	} else {
		s.logger.Debug("prediction below threshold",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("label", label),
			logging.Float64("confidence", confidence),
		)
	}
	return result, nil
}

func (s *Service) sessionLocked(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{window: smoothing.NewRing[[]float32](s.opts.SequenceLength)}
		if s.opts.RatePerSecond > 0 {
			burst := max(s.opts.Burst, 1)
			sess.limiter = rate.NewLimiter(rate.Limit(s.opts.RatePerSecond), burst)
		}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

// Reset drops the window of one session.
func (s *Service) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sessions reports the number of tracked sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the configured timeout and
// returns how many were dropped.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.opts.IdleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	interval := max(s.opts.IdleTimeout/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired idle sessions", logging.Int("count", n))
			}
		}
	}
}
