package model

import (
	"strings"

	"github.com/samcharles93/wick/internal/generr"
	"github.com/samcharles93/wick/internal/safetensors"
)

// DType is the precision weights are held at after load.
type DType string

const (
	F16  DType = "f16"
	BF16 DType = "bf16"
	F32  DType = "f32"
)

// ParseDType accepts f16, bf16 and f32 in any case. Anything else fails with
// generr.ErrUnsupportedDType.
func ParseDType(s string) (DType, error) {
	switch d := DType(strings.ToLower(strings.TrimSpace(s))); d {
	case F16, BF16, F32:
		return d, nil
	}
	return "", generr.Newf(generr.ErrUnsupportedDType, "%q (expected f16, bf16 or f32)", s)
}

// Round quantizes v in place to the precision of d. F32 is a no-op.
func (d DType) Round(v []float32) {
	switch d {
	case F16:
		for i, x := range v {
			v[i] = safetensors.DecodeF16(safetensors.EncodeF16(x))
		}
	case BF16:
		for i, x := range v {
			v[i] = safetensors.DecodeBF16(safetensors.EncodeBF16(x))
		}
	}
}
