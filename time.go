package radio

import (
	"fmt"
	"time"
)

// DeltaTime is a relative offset in microseconds. Scheduling inputs are always
// expressed as a DeltaTime relative to the current anchor T0.
type DeltaTime int64

const (
	Microsecond DeltaTime = 1
	Millisecond           = 1000 * Microsecond
	Second                = 1000 * Millisecond

	// MaxDeltaTime is the largest offset that can be resolved unambiguously on a
	// wrapping 32 bit microsecond timer.
	MaxDeltaTime DeltaTime = 1<<31 - 1
)

// Microseconds returns a DeltaTime of n microseconds.
func Microseconds(n int64) DeltaTime { return DeltaTime(n) }

// Milliseconds returns a DeltaTime of n milliseconds.
func Milliseconds(n int64) DeltaTime { return DeltaTime(n) * Millisecond }

// FromDuration converts d, truncating to whole microseconds.
func FromDuration(d time.Duration) DeltaTime { return DeltaTime(d / time.Microsecond) }

// Valid reports whether d can be used as a scheduling offset.
func (d DeltaTime) Valid() bool { return d >= 0 && d <= MaxDeltaTime }

// Duration converts d to a time.Duration.
func (d DeltaTime) Duration() time.Duration { return time.Duration(d) * time.Microsecond }

// Microseconds returns d as an integer microsecond count.
func (d DeltaTime) Microseconds() int64 { return int64(d) }

func (d DeltaTime) String() string { return fmt.Sprintf("%dus", int64(d)) }

// Instant is an absolute point on the free running, wrapping 32 bit microsecond
// timer of the radio hardware. Only the scheduler and the drivers see instants;
// callers work with DeltaTime offsets.
type Instant uint32

// Add returns i advanced by d. The result wraps with the hardware timer.
func (i Instant) Add(d DeltaTime) Instant { return Instant(uint32(i) + uint32(d)) }

// Sub returns the signed distance i - j, resolved across a timer wrap.
func (i Instant) Sub(j Instant) DeltaTime { return DeltaTime(int32(uint32(i) - uint32(j))) }

// Before reports whether i is earlier than j.
func (i Instant) Before(j Instant) bool { return i.Sub(j) < 0 }

// After reports whether i is later than j.
func (i Instant) After(j Instant) bool { return i.Sub(j) > 0 }

func (i Instant) String() string { return fmt.Sprintf("@%d", uint32(i)) }
