package codec

import "github.com/fxamacker/cbor/v2"

var (
	cborEncMode = mustEncMode()
	cborDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	// core deterministic encoding sorts map keys and uses the shortest integer and length
	// forms, so equal values always produce identical bytes
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// CBOR is a self-describing binary codec (RFC 8949) with deterministic encoding.
type CBOR struct{}

func (CBOR) Marshal(v any) ([]byte, error) { return cborEncMode.Marshal(v) }

func (CBOR) Unmarshal(data []byte, v any) error { return cborDecMode.Unmarshal(data, v) }

func (CBOR) Name() string { return "cbor" }
