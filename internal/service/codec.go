package service

import "encoding/json"

// JSONCodec is a Connect codec for plain Go structs. It replaces Connect's
// protojson codec under the same "json" name, so clients speak the Connect
// protocol with application/json bodies.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
