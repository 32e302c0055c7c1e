package predictor

import "github.com/newthinker/boxsim/internal/core"

// Recorder wraps a Predictor and keeps every prediction it hands out.
// It is owned by a single run and not safe for concurrent use.
type Recorder struct {
	next    Predictor
	history []Prediction
}

// NewRecorder wraps p.
func NewRecorder(p Predictor) *Recorder {
	return &Recorder{next: p}
}

func (r *Recorder) Predict(bar core.OHLCV, history []core.OHLCV) Prediction {
	pred := r.next.Predict(bar, history)
	r.history = append(r.history, pred)
	return pred
}

// History returns a copy of the recorded predictions in call order.
func (r *Recorder) History() []Prediction {
	out := make([]Prediction, len(r.history))
	copy(out, r.history)
	return out
}

// Reset forgets the recorded predictions.
func (r *Recorder) Reset() {
	r.history = nil
}
