package smoothing

// Stabilizer accepts a label once it fills the whole history window with a
// confidence strictly above the threshold, and never repeats the previous
// accepted label.
type Stabilizer struct {
	history   *Ring[string]
	threshold float64
	last      string
}

// NewStabilizer builds a stabilizer over a window of historySize predictions.
func NewStabilizer(historySize int, threshold float64) *Stabilizer {
	return &Stabilizer{history: NewRing[string](historySize), threshold: threshold}
}

// Observe records a prediction and reports whether it produced a new stable label.
func (s *Stabilizer) Observe(label string, confidence float64) (string, bool) {
	if label == "" {
		return "", false
	}
	s.history.Push(label)
	if !s.history.Full() || confidence <= s.threshold {
		return "", false
	}
	uniform := true
	s.history.All(func(v string) bool {
		uniform = v == label
		return uniform
	})
	if !uniform || label == s.last {
		return "", false
	}
	s.last = label
	return label, true
}

// Last returns the most recently accepted label.
func (s *Stabilizer) Last() string { return s.last }

// Window returns the buffered predictions oldest first.
func (s *Stabilizer) Window() []string {
	out := make([]string, 0, s.history.Len())
	s.history.All(func(v string) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Reset clears the window and forgets the last accepted label.
func (s *Stabilizer) Reset() {
	s.history.Reset()
	s.last = ""
}
