package grpcengine

import "encoding/json"

// Codec carries engine messages as JSON so both ends can share the plain Go
// types in package engine.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return "json"
}
