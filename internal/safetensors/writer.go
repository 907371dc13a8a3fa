package safetensors

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"

	"github.com/samcharles93/wick/internal/generr"
)

// Tensor is an in-memory tensor to be written by Write.
type Tensor struct {
	DType string // F32, F16 or BF16
	Shape []int
	Data  []float32
}

// Write stores tensors as a safetensors file. Tensors are laid out in name
// order so output is reproducible.
func Write(path string, tensors map[string]Tensor) error {
	names := slices.Sorted(maps.Keys(tensors))
	header := make(map[string]tensorHeader, len(names))
	var off int64
	for _, name := range names {
		t := tensors[name]
		n, err := numElements(t.Shape)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		if n != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v needs %d values, have %d", name, t.Shape, n, len(t.Data))
		}
		width, err := dtypeWidth(t.DType)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		end := off + int64(n*width)
		header[name] = tensorHeader{DType: t.DType, Shape: t.Shape, DataOffsets: []int64{off, end}}
		off = end
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(hb)))
	_, _ = w.Write(lenBuf[:])
	_, _ = w.Write(hb)

	var buf [4]byte
	for _, name := range names {
		t := tensors[name]
		for _, v := range t.Data {
			switch t.DType {
			case "F32":
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				_, _ = w.Write(buf[:4])
			case "F16":
				binary.LittleEndian.PutUint16(buf[:], EncodeF16(v))
				_, _ = w.Write(buf[:2])
			case "BF16":
				binary.LittleEndian.PutUint16(buf[:], EncodeBF16(v))
				_, _ = w.Write(buf[:2])
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func dtypeWidth(dtype string) (int, error) {
	switch dtype {
	case "F32":
		return 4, nil
	case "F16", "BF16":
		return 2, nil
	}
	return 0, generr.Newf(generr.ErrUnsupportedDType, "cannot write dtype %q", dtype)
}
