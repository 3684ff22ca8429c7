package slackify

import (
	"errors"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrNotInChannel is the access error a Platform wraps when the bot is not
// a member of the target channel. The router recovers from it by joining
// the channel and retrying once.
var ErrNotInChannel = errors.New("not_in_channel")

// ErrNoRecipient is returned when a DM is required but the delivery
// context names no user to send it to.
var ErrNoRecipient = errors.New("no fallback user for direct message")

func deliveryFailure(msg string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(msg).
		WithCause(cause)
}

func accessFailure(msg string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msg).
		WithCause(cause)
}

// IsDeliveryFailure reports whether err was produced by the router after
// every recovery path was exhausted.
func IsDeliveryFailure(err error) bool {
	var eb *errbuilder.ErrBuilder
	return errors.As(err, &eb)
}
