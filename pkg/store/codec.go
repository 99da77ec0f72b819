package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// The codec is fixed for the life of a database: core-deterministic CBOR
// encoding so that encoding the same value always yields the same bytes.
// Map keys are sorted, floats use the shortest form, and indefinite-length
// items are rejected. Determinism matters because state checksums are
// computed over encoded bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: building CBOR encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("store: building CBOR decode mode: %v", err))
	}
}

// Encode serializes v with the deterministic CBOR mode.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode deserializes CBOR bytes into v.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
