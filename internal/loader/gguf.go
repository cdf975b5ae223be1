package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/rawtree-ml/rawtree/internal/gguf"
	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// ggufDTypes maps unquantized GGUF tensor types to data types.
var ggufDTypes = map[gguf.TensorType]tensor.DataType{
	gguf.TypeF32:  tensor.Float32,
	gguf.TypeF16:  tensor.Float16,
	gguf.TypeBF16: tensor.BFloat16,
	gguf.TypeF64:  tensor.Float64,
	gguf.TypeI8:   tensor.Int8,
	gguf.TypeI16:  tensor.Int16,
	gguf.TypeI32:  tensor.Int32,
	gguf.TypeI64:  tensor.Int64,
}

type ggufCheckpoint struct {
	file *gguf.File
	opts Options
}

func openGGUF(path string, opts Options) (*ggufCheckpoint, error) {
	file, err := gguf.Open(path)
	if err != nil {
		return nil, err
	}
	return &ggufCheckpoint{file: file, opts: opts}, nil
}

func (c *ggufCheckpoint) Format() Format {
	return FormatGGUF
}

func (c *ggufCheckpoint) Metadata() map[string]string {
	md := make(map[string]string)
	if name := c.file.Name(); name != "" {
		md["general.name"] = name
	}
	if arch := c.file.Architecture(); arch != "" {
		md["general.architecture"] = arch
	}
	return md
}

// Tree materializes every tensor into a parameter tree. GGUF names are
// dotted ("blk.0.attn_q.weight") and split into path segments the same
// way safetensors names are.
//
// GGUF stores dimensions innermost-first; they are reversed here so the
// exported shape reads outermost-first like every other format.
func (c *ggufCheckpoint) Tree() (*tree.Tree[*tensor.Raw], error) {
	tr := tree.New[*tensor.Raw]()
	for i := range c.file.TensorInfo {
		info := &c.file.TensorInfo[i]
		array, err := c.loadTensor(info)
		if err != nil {
			return nil, err
		}
		if err := tr.Insert(tree.Path(strings.Split(info.Name, ".")), array); err != nil {
			return nil, fmt.Errorf("tensor %s collides with another tensor: %w", info.Name, err)
		}
	}
	return tr, nil
}

func (c *ggufCheckpoint) loadTensor(info *gguf.TensorInfo) (*tensor.Raw, error) {
	shape := make(tensor.Shape, len(info.Dimensions))
	for i, d := range info.Dimensions {
		shape[len(shape)-1-i] = int(d)
	}

	data, err := c.file.ReadTensor(info.Name)
	if err != nil {
		return nil, err
	}

	if dtype, ok := ggufDTypes[info.Type]; ok {
		array, err := tensor.FromBytes(dtype, shape, data)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", info.Name, err)
		}
		return array, nil
	}

	if !c.opts.Dequantize {
		return nil, fmt.Errorf("tensor %s has quantized type %s; pass --dequant to expand to float32",
			info.Name, info.Type)
	}
	vals, err := gguf.Dequantize(data, info.Type, info.NumElements())
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", info.Name, err)
	}
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	array, err := tensor.FromBytes(tensor.Float32, shape, buf)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", info.Name, err)
	}
	return array, nil
}

func (c *ggufCheckpoint) Close() error {
	return c.file.Close()
}
