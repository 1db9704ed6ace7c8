package container

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/containervault/containervault/internal/container/domain"
)

// MarshalContainer serializes a Container to its on-the-wire document form:
// CBOR, which preserves byte strings and typed integers/doubles distinctly
// from text, so binary fields ride through without base64 re-encoding.
func MarshalContainer(c *domain.Container) ([]byte, error) {
	out, err := cbor.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal container: %w", err)
	}
	return out, nil
}

// UnmarshalContainer parses a CBOR-encoded container document.
func UnmarshalContainer(data []byte) (*domain.Container, error) {
	var c domain.Container
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal container: %w", err)
	}
	return &c, nil
}
