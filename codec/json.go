package codec

import "encoding/json"

// JSON is the standard-library JSON codec. Map keys are sorted on encoding, which keeps
// output deterministic for maps and structs.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSON) Name() string { return "json" }
