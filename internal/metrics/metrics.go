// Package metrics exposes a small recording interface so the scheduler
// and stream supervisor packages never import prometheus directly; only
// this package and cmd/capdabd know it exists.
package metrics

import "time"

// Metrics is the recording surface C6 and C4 are constructor-injected
// with. A no-op implementation satisfies it for tests.
type Metrics interface {
	AlertReceived()
	AlertDropped()
	SetActiveAlertCount(n int)
	ObserveTickDuration(d time.Duration)
	ObserveMuxCommandLatency(d time.Duration)
	MuxCommandFailed()
	StreamRestarted(stream string)
	SetStreamState(stream, state string)
}

// Noop discards every recording call; used in tests and anywhere a
// Metrics collaborator isn't wired.
type Noop struct{}

func (Noop) AlertReceived()                            {}
func (Noop) AlertDropped()                             {}
func (Noop) SetActiveAlertCount(int)                    {}
func (Noop) ObserveTickDuration(time.Duration)          {}
func (Noop) ObserveMuxCommandLatency(time.Duration)     {}
func (Noop) MuxCommandFailed()                          {}
func (Noop) StreamRestarted(string)                     {}
func (Noop) SetStreamState(string, string)              {}
