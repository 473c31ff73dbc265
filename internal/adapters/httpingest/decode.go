package httpingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ghalamif/accelsentry/internal/domain"
)

type wirePayload struct {
	X *[]*float64 `json:"x"`
	Y *[]*float64 `json:"y"`
	Z *[]*float64 `json:"z"`
}

// DecodeBurst parses {"x":[...],"y":[...],"z":[...]}. All three keys are
// required, every element must be a number, and the arrays must have equal
// length. Errors wrap domain.ErrDecode.
func DecodeBurst(body []byte) (*domain.Burst, error) {
	var p wirePayload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON document", domain.ErrDecode)
	}

	x, err := axis("x", p.X)
	if err != nil {
		return nil, err
	}
	y, err := axis("y", p.Y)
	if err != nil {
		return nil, err
	}
	z, err := axis("z", p.Z)
	if err != nil {
		return nil, err
	}

	b := &domain.Burst{X: x, Y: y, Z: z}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return b, nil
}

func axis(key string, raw *[]*float64) ([]float64, error) {
	if raw == nil || *raw == nil {
		return nil, fmt.Errorf("%w: missing array %q", domain.ErrDecode, key)
	}
	out := make([]float64, len(*raw))
	for i, v := range *raw {
		if v == nil {
			return nil, fmt.Errorf("%w: %s[%d] is null", domain.ErrDecode, key, i)
		}
		out[i] = *v
	}
	return out, nil
}
