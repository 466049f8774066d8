// Package sse reads and writes server-sent events. The inference engine's
// HTTP transport streams cumulative generation outputs this way.
package sse

// Event is one parsed SSE event, terminated by a blank line on the wire.
type Event struct {
	// Type comes from the "event:" field. Empty means "message".
	Type string

	// Data joins every "data:" line of the event with "\n".
	Data string

	// ID comes from the "id:" field.
	ID string
}
