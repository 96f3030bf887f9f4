package radio

import "github.com/pkg/errors"

var (
	// ErrOperationPending is returned when a scheduling call or a configuration
	// change is made while a previously scheduled operation has not completed.
	ErrOperationPending = errors.New("scheduled operation pending")
	ErrInvalidChannel   = errors.New("invalid channel (valid range: 0-39)")
	ErrInvalidDelta     = errors.New("invalid delta time")
	ErrInvalidWindow    = errors.New("receive window ends before it starts")
	ErrEmptyTransmit    = errors.New("empty transmit buffer")
	ErrNotStarted       = errors.New("radio not started")
	ErrClosed           = errors.New("radio closed")
	ErrInvalidOption    = errors.New("invalid option")
)

// MaxChannel is the highest link layer channel index.
const MaxChannel = 39

// CheckChannel validates a channel index.
func CheckChannel(ch uint) error {
	if ch > MaxChannel {
		return errors.Wrapf(ErrInvalidChannel, "channel %d", ch)
	}
	return nil
}

// CheckDelta validates a scheduling offset; name identifies the parameter in the error.
func CheckDelta(name string, d DeltaTime) error {
	if !d.Valid() {
		return errors.Wrapf(ErrInvalidDelta, "%s = %v", name, d)
	}
	return nil
}
