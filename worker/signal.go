package worker

import "sync"

// Signal is a single-fire completion flag. The terminal worker fires it after
// it has observed end of stream and finished its last batch.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal returns an unset Signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire sets the signal. It returns true only for the call that set it.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// IsSet reports whether the signal has fired.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
