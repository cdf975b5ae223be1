package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// IndexFileName describes a sharded safetensors checkpoint: a JSON file
// mapping tensor names to the shard file that holds them.
const IndexFileName = "model.safetensors.index.json"

// maxHeaderSize bounds the JSON header to keep corrupt files from
// triggering huge allocations.
const maxHeaderSize = 100 * 1024 * 1024

// safeTensorInfo describes one tensor in the JSON header.
type safeTensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end], relative to the data section.
}

// safeTensorsHeader is the parsed JSON header.
type safeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]safeTensorInfo
}

func (h *safeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}
	h.Tensors = make(map[string]safeTensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			if err := json.Unmarshal(value, &h.Metadata); err != nil {
				return fmt.Errorf("unmarshal metadata: %w", err)
			}
			continue
		}
		var info safeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// safeTensorsFile reads one .safetensors file.
type safeTensorsFile struct {
	file       *os.File
	header     safeTensorsHeader
	dataOffset int64
}

func openSafeTensorsFile(path string) (*safeTensorsFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header safeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("parse header JSON: %w", err)
	}

	return &safeTensorsFile{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize),
	}, nil
}

func (r *safeTensorsFile) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// readTensorData reads the raw bytes of one tensor.
func (r *safeTensorsFile) readTensorData(name string) ([]byte, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if size < 0 {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: %v", name, info.DataOffsets)
	}
	data := make([]byte, size)
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("read tensor %s: %w", name, err)
	}
	return data, nil
}

// safeTensorsDTypes maps the header's dtype identifiers to data types.
var safeTensorsDTypes = map[string]tensor.DataType{
	"F64":  tensor.Float64,
	"F32":  tensor.Float32,
	"F16":  tensor.Float16,
	"BF16": tensor.BFloat16,
	"I8":   tensor.Int8,
	"I16":  tensor.Int16,
	"I32":  tensor.Int32,
	"I64":  tensor.Int64,
	"U8":   tensor.Uint8,
	"U16":  tensor.Uint16,
	"U32":  tensor.Uint32,
	"U64":  tensor.Uint64,
	"BOOL": tensor.Bool,
}

// safeTensorsCheckpoint is a Checkpoint over one or more safetensors
// shards.
type safeTensorsCheckpoint struct {
	shards   []*safeTensorsFile
	metadata map[string]string
}

// openSafeTensors opens a single .safetensors file as a checkpoint.
func openSafeTensors(path string) (*safeTensorsCheckpoint, error) {
	f, err := openSafeTensorsFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors %q: %w", path, err)
	}
	return &safeTensorsCheckpoint{shards: []*safeTensorsFile{f}, metadata: f.header.Metadata}, nil
}

// openSafeTensorsDir opens a directory of safetensors shards. If an
// index file is present its weight_map decides the shard set; otherwise
// every *.safetensors file in the directory is loaded.
func openSafeTensorsDir(dir string) (*safeTensorsCheckpoint, error) {
	shardNames, err := shardFiles(dir)
	if err != nil {
		return nil, err
	}
	ckpt := &safeTensorsCheckpoint{}
	for _, name := range shardNames {
		f, err := openSafeTensorsFile(filepath.Join(dir, name))
		if err != nil {
			ckpt.close()
			return nil, fmt.Errorf("shard %q: %w", name, err)
		}
		ckpt.shards = append(ckpt.shards, f)
		if ckpt.metadata == nil {
			ckpt.metadata = f.header.Metadata
		}
	}
	if len(ckpt.shards) == 0 {
		return nil, fmt.Errorf("no .safetensors files in %q", dir)
	}
	return ckpt, nil
}

func shardFiles(dir string) ([]string, error) {
	indexPath := filepath.Join(dir, IndexFileName)
	if data, err := os.ReadFile(indexPath); err == nil {
		var index struct {
			WeightMap map[string]string `json:"weight_map"`
		}
		if err := json.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("parse %q: %w", indexPath, err)
		}
		seen := make(map[string]bool)
		var names []string
		for _, shard := range index.WeightMap {
			if !seen[shard] {
				seen[shard] = true
				names = append(names, shard)
			}
		}
		sort.Strings(names)
		return names, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".safetensors" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *safeTensorsCheckpoint) Format() Format {
	return FormatSafeTensors
}

func (c *safeTensorsCheckpoint) Metadata() map[string]string {
	return c.metadata
}

// Tree materializes every tensor of every shard into a parameter tree.
// Dotted tensor names become tree paths: "model.layers.0.w" nests as
// model/layers/0/w, recovering the hierarchy the flat name encodes.
func (c *safeTensorsCheckpoint) Tree() (*tree.Tree[*tensor.Raw], error) {
	tr := tree.New[*tensor.Raw]()
	for _, shard := range c.shards {
		names := make([]string, 0, len(shard.header.Tensors))
		for name := range shard.header.Tensors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			info := shard.header.Tensors[name]
			dtype, ok := safeTensorsDTypes[info.DType]
			if !ok {
				return nil, fmt.Errorf("tensor %s: unsupported dtype %q", name, info.DType)
			}
			data, err := shard.readTensorData(name)
			if err != nil {
				return nil, err
			}
			array, err := tensor.FromBytes(dtype, tensor.Shape(info.Shape), data)
			if err != nil {
				return nil, fmt.Errorf("tensor %s: %w", name, err)
			}
			if err := tr.Insert(tree.Path(strings.Split(name, ".")), array); err != nil {
				return nil, fmt.Errorf("tensor %s collides with another tensor: %w", name, err)
			}
		}
	}
	return tr, nil
}

func (c *safeTensorsCheckpoint) Close() error {
	return c.close()
}

func (c *safeTensorsCheckpoint) close() error {
	var firstErr error
	for _, shard := range c.shards {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
