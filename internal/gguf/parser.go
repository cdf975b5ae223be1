package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Open parses the header, metadata and tensor table of a GGUF file and
// keeps the file handle open for subsequent ReadTensor calls.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gguf: %w", err)
	}
	file, err := parse(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	file.path = path
	file.f = f
	return file, nil
}

type parser struct {
	r     io.ReadSeeker
	order binary.ByteOrder
}

func parse(r io.ReadSeeker) (*File, error) {
	p := &parser{r: r, order: binary.LittleEndian}
	file := &File{
		Metadata:  make(map[string]any),
		Alignment: DefaultAlignment,
	}

	if err := p.parseHeader(&file.Header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	for i := uint64(0); i < file.Header.MetadataKVCount; i++ {
		key, value, err := p.parseMetadataKV()
		if err != nil {
			return nil, fmt.Errorf("metadata kv %d: %w", i, err)
		}
		file.Metadata[key] = value
		if key == "general.alignment" {
			if align, ok := value.(uint32); ok {
				file.Alignment = int(align)
			}
		}
	}

	file.TensorInfo = make([]TensorInfo, file.Header.TensorCount)
	for i := range file.TensorInfo {
		if err := p.parseTensorInfo(&file.TensorInfo[i]); err != nil {
			return nil, fmt.Errorf("tensor info %d: %w", i, err)
		}
	}

	pos, err := p.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	file.TensorDataOffset = alignOffset(pos, file.Alignment)

	return file, nil
}

func (p *parser) parseHeader(h *Header) error {
	if err := binary.Read(p.r, p.order, &h.Magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	switch h.Magic {
	case MagicLE:
		p.order = binary.LittleEndian
	case MagicBE:
		p.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid magic: 0x%08X (expected GGUF)", h.Magic)
	}
	if err := binary.Read(p.r, p.order, &h.Version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if h.Version < VersionMin || h.Version > VersionMax {
		return fmt.Errorf("unsupported version: %d (supported: %d-%d)", h.Version, VersionMin, VersionMax)
	}
	if err := binary.Read(p.r, p.order, &h.TensorCount); err != nil {
		return fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(p.r, p.order, &h.MetadataKVCount); err != nil {
		return fmt.Errorf("read metadata kv count: %w", err)
	}
	return nil
}

func (p *parser) parseMetadataKV() (string, any, error) {
	key, err := readString(p.r, p.order)
	if err != nil {
		return "", nil, fmt.Errorf("read key: %w", err)
	}
	var valueType uint32
	if err := binary.Read(p.r, p.order, &valueType); err != nil {
		return "", nil, fmt.Errorf("read value type: %w", err)
	}
	value, err := p.parseValue(ValueType(valueType))
	if err != nil {
		return "", nil, fmt.Errorf("read value of %q: %w", key, err)
	}
	return key, value, nil
}

func (p *parser) parseValue(t ValueType) (any, error) {
	switch t {
	case ValueTypeBool:
		var v uint8
		if err := binary.Read(p.r, p.order, &v); err != nil {
			return nil, err
		}
		return v != 0, nil
	case ValueTypeString:
		return readString(p.r, p.order)
	case ValueTypeArray:
		return p.parseArray()
	default:
		return p.parseScalar(t)
	}
}

// parseScalar reads one numeric value of the given type.
func (p *parser) parseScalar(t ValueType) (any, error) {
	var v any
	switch t {
	case ValueTypeUint8:
		v = new(uint8)
	case ValueTypeInt8:
		v = new(int8)
	case ValueTypeUint16:
		v = new(uint16)
	case ValueTypeInt16:
		v = new(int16)
	case ValueTypeUint32:
		v = new(uint32)
	case ValueTypeInt32:
		v = new(int32)
	case ValueTypeFloat32:
		v = new(float32)
	case ValueTypeUint64:
		v = new(uint64)
	case ValueTypeInt64:
		v = new(int64)
	case ValueTypeFloat64:
		v = new(float64)
	default:
		return nil, fmt.Errorf("unknown value type: %d", t)
	}
	if err := binary.Read(p.r, p.order, v); err != nil {
		return nil, err
	}
	return deref(v), nil
}

func deref(v any) any {
	switch p := v.(type) {
	case *uint8:
		return *p
	case *int8:
		return *p
	case *uint16:
		return *p
	case *int16:
		return *p
	case *uint32:
		return *p
	case *int32:
		return *p
	case *float32:
		return *p
	case *uint64:
		return *p
	case *int64:
		return *p
	case *float64:
		return *p
	}
	return v
}

func (p *parser) parseArray() (any, error) {
	var elemType uint32
	if err := binary.Read(p.r, p.order, &elemType); err != nil {
		return nil, fmt.Errorf("read array element type: %w", err)
	}
	var length uint64
	if err := binary.Read(p.r, p.order, &length); err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if length > 100_000_000 {
		return nil, fmt.Errorf("array too large: %d elements", length)
	}

	vt := ValueType(elemType)
	switch vt {
	case ValueTypeString:
		arr := make([]string, length)
		for i := range arr {
			s, err := readString(p.r, p.order)
			if err != nil {
				return nil, err
			}
			arr[i] = s
		}
		return arr, nil
	case ValueTypeBool:
		raw := make([]uint8, length)
		if err := binary.Read(p.r, p.order, raw); err != nil {
			return nil, err
		}
		arr := make([]bool, length)
		for i, v := range raw {
			arr[i] = v != 0
		}
		return arr, nil
	case ValueTypeArray:
		return nil, fmt.Errorf("nested arrays are not supported")
	}

	// Fixed-width element types read in one shot.
	var arr any
	switch vt {
	case ValueTypeUint8:
		arr = make([]uint8, length)
	case ValueTypeInt8:
		arr = make([]int8, length)
	case ValueTypeUint16:
		arr = make([]uint16, length)
	case ValueTypeInt16:
		arr = make([]int16, length)
	case ValueTypeUint32:
		arr = make([]uint32, length)
	case ValueTypeInt32:
		arr = make([]int32, length)
	case ValueTypeFloat32:
		arr = make([]float32, length)
	case ValueTypeUint64:
		arr = make([]uint64, length)
	case ValueTypeInt64:
		arr = make([]int64, length)
	case ValueTypeFloat64:
		arr = make([]float64, length)
	default:
		return nil, fmt.Errorf("unsupported array element type: %d", vt)
	}
	if err := binary.Read(p.r, p.order, arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *parser) parseTensorInfo(t *TensorInfo) error {
	name, err := readString(p.r, p.order)
	if err != nil {
		return fmt.Errorf("read tensor name: %w", err)
	}
	t.Name = name

	var ndims uint32
	if err := binary.Read(p.r, p.order, &ndims); err != nil {
		return fmt.Errorf("read ndims: %w", err)
	}
	if ndims > 8 {
		return fmt.Errorf("too many dimensions: %d", ndims)
	}
	t.Dimensions = make([]uint64, ndims)
	for i := range t.Dimensions {
		if err := binary.Read(p.r, p.order, &t.Dimensions[i]); err != nil {
			return fmt.Errorf("read dimension %d: %w", i, err)
		}
	}

	var tensorType uint32
	if err := binary.Read(p.r, p.order, &tensorType); err != nil {
		return fmt.Errorf("read type: %w", err)
	}
	t.Type = TensorType(tensorType)

	if err := binary.Read(p.r, p.order, &t.Offset); err != nil {
		return fmt.Errorf("read offset: %w", err)
	}
	return nil
}

// ReadTensor loads the raw on-disk bytes of the named tensor.
func (f *File) ReadTensor(name string) ([]byte, error) {
	info := f.Tensor(name)
	if info == nil {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}
	if f.f == nil {
		return nil, fmt.Errorf("file %q is closed", f.path)
	}
	size, err := info.Type.DataSize(info.NumElements())
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	offset := f.TensorDataOffset + int64(info.Offset)
	if _, err := f.f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to tensor %s: %w", name, err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(f.f, data); err != nil {
		return nil, fmt.Errorf("read tensor %s: %w", name, err)
	}
	return data, nil
}
