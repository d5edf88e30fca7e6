package kontomanager

import "errors"

// SendResult classifies the portal's response to a single send attempt.
type SendResult int

const (
	// ResultOk indicates the portal accepted the message.
	ResultOk SendResult = iota
	// ResultEnqueued is returned by SendMessage when queuing is enabled. The
	// real per-attempt results arrive on the message's Attempts channel.
	ResultEnqueued
	// ResultLimitReached indicates the carrier refused the message because the
	// account hit its sending quota.
	ResultLimitReached
	// ResultInvalidNumberFormat indicates the portal rejected the recipient
	// number. This outcome is terminal; resending the same number cannot help.
	ResultInvalidNumberFormat
	// ResultSessionExpired indicates the portal no longer recognises the
	// session. The reconnect-and-retry path recovers from this exactly once
	// per send.
	ResultSessionExpired
	// ResultOtherError covers transport failures and unclassifiable responses.
	ResultOtherError
)

// String returns a stable human readable name for logging.
func (r SendResult) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultEnqueued:
		return "enqueued"
	case ResultLimitReached:
		return "limit_reached"
	case ResultInvalidNumberFormat:
		return "invalid_number_format"
	case ResultSessionExpired:
		return "session_expired"
	case ResultOtherError:
		return "other_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the queue consumer should stop re-driving a
// message that produced this result. LimitReached and transport errors are
// worth retrying once admission allows; the rest are not.
func (r SendResult) Terminal() bool {
	switch r {
	case ResultOk, ResultInvalidNumberFormat, ResultSessionExpired:
		return true
	default:
		return false
	}
}

var (
	// ErrQueueClosed is returned by SendMessage once Close has been called on
	// a queuing client.
	ErrQueueClosed = errors.New("kontomanager: dispatch queue is closed")
	// ErrInvalidNumberFormat is surfaced instead of ResultInvalidNumberFormat
	// when the client was built with WithErrorOnInvalidNumber.
	ErrInvalidNumberFormat = errors.New("kontomanager: recipient number format rejected by portal")
	// ErrNotConnected indicates an operation required a live session and the
	// reconnect attempt did not produce one.
	ErrNotConnected = errors.New("kontomanager: no authenticated session")
	// ErrInvalidCredentials is surfaced by Connect instead of a plain false
	// when the client was built with WithErrorOnAuthFailure.
	ErrInvalidCredentials = errors.New("kontomanager: credentials rejected by portal")
)
