package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rawtree-ml/rawtree/internal/flax"
	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// Format identifies a checkpoint format.
type Format int

// Supported checkpoint formats.
const (
	FormatUnknown Format = iota
	FormatSafeTensors
	FormatGGUF
	FormatFlax
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatGGUF:
		return "GGUF"
	case FormatFlax:
		return "flax aggregate"
	default:
		return "Unknown"
	}
}

// Options control how a checkpoint is decoded.
type Options struct {
	// Dequantize expands quantized GGUF tensors to float32 instead of
	// rejecting them. Unquantized tensors are never altered.
	Dequantize bool
}

// Checkpoint is an opened checkpoint of any supported format.
type Checkpoint interface {
	// Format returns the detected checkpoint format.
	Format() Format

	// Metadata returns format-level string metadata, if any.
	Metadata() map[string]string

	// Tree materializes the full parameter tree in host memory.
	Tree() (*tree.Tree[*tensor.Raw], error)

	// Close releases underlying file handles.
	Close() error
}

// Open detects the checkpoint format at path and opens it. The path may
// be a .safetensors or .gguf file, or a directory holding safetensors
// shards, a single .gguf file, or a flax aggregate checkpoint.
func Open(path string, opts Options) (Checkpoint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint path: %w", err)
	}

	if !info.IsDir() {
		switch filepath.Ext(path) {
		case ".safetensors":
			return openSafeTensors(path)
		case ".gguf":
			return openGGUF(path, opts)
		default:
			return nil, fmt.Errorf("unrecognized checkpoint file %q (expected .safetensors or .gguf)", path)
		}
	}

	if flax.IsCheckpointDir(path) {
		return &flaxCheckpoint{dir: path}, nil
	}
	names, err := shardFiles(path)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return openSafeTensorsDir(path)
	}
	if ggufs, _ := filepath.Glob(filepath.Join(path, "*.gguf")); len(ggufs) == 1 {
		return openGGUF(ggufs[0], opts)
	}
	return nil, fmt.Errorf("no recognized checkpoint in %q "+
		"(looked for a flax aggregate, *.safetensors, and *.gguf)", path)
}

// flaxCheckpoint defers to the flax package; the aggregate file is
// decoded in one shot so there is no handle to hold open.
type flaxCheckpoint struct {
	dir string
}

func (c *flaxCheckpoint) Format() Format              { return FormatFlax }
func (c *flaxCheckpoint) Metadata() map[string]string { return nil }
func (c *flaxCheckpoint) Close() error                { return nil }

func (c *flaxCheckpoint) Tree() (*tree.Tree[*tensor.Raw], error) {
	return flax.Open(c.dir)
}
