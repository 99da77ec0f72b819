package drive

import (
	"encoding/json"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Slice returns the rights in sorted order. All serialized forms go
// through this so equal sets always produce equal bytes.
func (s RightSet[R]) Slice() []R {
	out := make([]R, 0, len(s.rights))
	for r := range s.rights {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON implements json.Marshaler.
func (s RightSet[R]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RightSet[R]) UnmarshalJSON(data []byte) error {
	var rights []R
	if err := json.Unmarshal(data, &rights); err != nil {
		return err
	}
	*s = NewRightSet(rights...)
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (s RightSet[R]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.Slice())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *RightSet[R]) UnmarshalCBOR(data []byte) error {
	var rights []R
	if err := cbor.Unmarshal(data, &rights); err != nil {
		return err
	}
	*s = NewRightSet(rights...)
	return nil
}
