package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	"github.com/samcharles93/wick/internal/generr"
)

// maxHeaderLen guards against reading a garbage length as a huge allocation.
const maxHeaderLen = 100 << 20

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is an open safetensors file. Tensor bytes are served from a read-only
// memory mapping where the platform supports it.
type File struct {
	Path      string
	DataStart int64
	Tensors   map[string]TensorInfo
	Metadata  map[string]string

	data  []byte
	unmap func() error
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

func Open(path string) (*File, error) {
	data, unmap, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parse(path, data)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	f.unmap = unmap
	return f, nil
}

func parse(path string, data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%s: file too short for header", path)
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderLen || 8+headerLen > uint64(len(data)) {
		return nil, fmt.Errorf("%s: invalid header length %d", path, headerLen)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("%s: parse header: %w", path, err)
	}

	var meta map[string]string
	if m, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, fmt.Errorf("%s: parse metadata: %w", path, err)
		}
		delete(raw, "__metadata__")
	}

	dataStart := int64(8 + headerLen)
	payload := int64(len(data)) - dataStart
	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("tensor %s: invalid data_offsets", name)
		}
		start, end := th.DataOffsets[0], th.DataOffsets[1]
		if start < 0 || end < start || end > payload {
			return nil, fmt.Errorf("tensor %s: offsets [%d,%d) outside payload of %d bytes", name, start, end, payload)
		}
		tensors[name] = TensorInfo{DType: th.DType, Shape: th.Shape, Start: start, End: end}
	}
	return &File{
		Path:      path,
		DataStart: dataStart,
		Tensors:   tensors,
		Metadata:  meta,
		data:      data,
	}, nil
}

// Close releases the mapping. Slices returned by ReadTensor are invalid
// afterwards.
func (f *File) Close() error {
	if f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.data = nil
	return err
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// ReadTensor returns the raw little-endian bytes of a tensor without copying.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	if f.data == nil {
		return nil, TensorInfo{}, fmt.Errorf("read tensor %s: %w", name, os.ErrClosed)
	}
	off := f.DataStart
	return f.data[off+t.Start : off+t.End], t, nil
}

// ReadTensorF32 decodes a F32, BF16 or F16 tensor into float32. Any other
// dtype fails with generr.ErrUnsupportedDType.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	raw, info, err := f.ReadTensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	n, err := numElements(info.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	width := 2
	switch info.DType {
	case "F32":
		width = 4
	case "BF16", "F16":
	default:
		return nil, TensorInfo{}, generr.Newf(generr.ErrUnsupportedDType, "tensor %s has dtype %s", name, info.DType)
	}
	if len(raw) != n*width {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %d bytes for %d %s elements", name, len(raw), n, info.DType)
	}

	out := make([]float32, n)
	switch info.DType {
	case "F32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "BF16":
		for i := range out {
			out[i] = DecodeBF16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "F16":
		for i := range out {
			out[i] = DecodeF16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return out, info, nil
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		// Scalars hold one element.
		return 1, nil
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}
