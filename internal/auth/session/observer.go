package session

import "time"

// Observer receives one call per finished Service operation.
// code is the Outcome code, or "fatal" when the operation returned an error.
type Observer interface {
	ObserveOperation(operation, code string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
