package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of one scrape.
type State string

const (
	StateSelecting      State = "selecting"
	StateFetching       State = "fetching"
	StateExtracting     State = "extracting"
	StateFallingBack    State = "falling-back"
	StatePostProcessing State = "post-processing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

var rank = map[State]int{
	StateSelecting:      0,
	StateFetching:       1,
	StateExtracting:     2,
	StateFallingBack:    3,
	StatePostProcessing: 4,
	StateDone:           5,
	StateFailed:         5,
}

// ErrBackwardTransition reports a transition that does not move forward.
var ErrBackwardTransition = errors.New("backward state transition")

// trail records the states one scrape went through. Not safe for concurrent
// use; each scrape owns its trail.
type trail struct {
	states []State
}

func newTrail() *trail { return &trail{states: []State{StateSelecting}} }

func (t *trail) current() State { return t.states[len(t.states)-1] }

func (t *trail) terminal() bool {
	c := t.current()
	return c == StateDone || c == StateFailed
}

// advance moves to next. Steps may be skipped; failed is reachable from any
// non-terminal state.
func (t *trail) advance(next State) error {
	r, ok := rank[next]
	if !ok {
		return fmt.Errorf("unknown state %q", next)
	}
	if t.terminal() || r <= rank[t.current()] {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, t.current(), next)
	}
	t.states = append(t.states, next)
	return nil
}

func (t *trail) strings() []string {
	out := make([]string, len(t.states))
	for i, s := range t.states {
		out[i] = string(s)
	}
	return out
}
