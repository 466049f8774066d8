package eventstream

import "errors"

// ErrNilEvent indicates a nil usage event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil usage event")
