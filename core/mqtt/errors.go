package mqtt

import "errors"

// ErrAckTimeout is returned when a subcentral controller does not
// acknowledge a dispatch order in time.
var ErrAckTimeout = errors.New("mqtt: timeout waiting for dispatch ack")
