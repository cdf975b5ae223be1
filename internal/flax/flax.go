// Package flax reads legacy flax/orbax checkpoint directories: a single
// msgpack "checkpoint" aggregate file holding the full parameter tree,
// with numpy arrays encoded as maps in the msgpack_numpy convention
// ({"nd": true, "type": "<f4", "shape": [...], "data": <bin>}).
//
// The newer OCDBT layout (tensorstore-backed, marked by a manifest.ocdbt
// file) is not decodable here; Open reports it with a clear error so the
// user can convert via a safetensors export instead.
package flax

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

const (
	// AggregateFileName is the msgpack aggregate inside a checkpoint
	// directory.
	AggregateFileName = "checkpoint"

	// OCDBTManifestFileName marks the "Orbax Consistent Distributed
	// Backend Tree" layout, which this reader does not support.
	OCDBTManifestFileName = "manifest.ocdbt"
)

// IsCheckpointDir reports whether dir looks like a flax/orbax checkpoint
// directory (aggregate or OCDBT).
func IsCheckpointDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, AggregateFileName)); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, OCDBTManifestFileName)); err == nil {
		return true
	}
	return false
}

// Open decodes the aggregate file of a checkpoint directory into a
// parameter tree.
func Open(dir string) (*tree.Tree[*tensor.Raw], error) {
	if _, err := os.Stat(filepath.Join(dir, OCDBTManifestFileName)); err == nil {
		return nil, fmt.Errorf("%q uses the OCDBT checkpoint layout, which is not supported; "+
			"re-export the model as safetensors and convert that instead", dir)
	}

	aggregatePath := filepath.Join(dir, AggregateFileName)
	f, err := os.Open(aggregatePath)
	if err != nil {
		return nil, fmt.Errorf("open aggregate checkpoint %q: %w", aggregatePath, err)
	}
	defer func() { _ = f.Close() }()

	dec := msgpack.NewDecoder(f)
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode aggregate checkpoint %q: %w", aggregatePath, err)
	}

	tr := tree.New[*tensor.Raw]()
	if err := insertNode(tr, nil, root); err != nil {
		return nil, fmt.Errorf("aggregate checkpoint %q: %w", aggregatePath, err)
	}
	return tr, nil
}

// insertNode walks the decoded msgpack structure, inserting leaf arrays
// into the tree under the key path accumulated so far.
func insertNode(tr *tree.Tree[*tensor.Raw], path tree.Path, node any) error {
	m, err := asStringMap(node)
	if err != nil {
		return fmt.Errorf("at %q: %w", path.String(), err)
	}
	if isArrayNode(m) {
		array, err := decodeArray(m)
		if err != nil {
			return fmt.Errorf("array at %q: %w", path.String(), err)
		}
		return tr.Insert(path, array)
	}
	for key, child := range m {
		if err := insertNode(tr, append(path.Clone(), key), child); err != nil {
			return err
		}
	}
	return nil
}

func asStringMap(node any) (map[string]any, error) {
	switch m := node.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string tree key %v (%T)", k, k)
			}
			out[key] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected node type %T (neither sub-tree nor array)", node)
	}
}

// isArrayNode recognizes the msgpack_numpy leaf encoding.
func isArrayNode(m map[string]any) bool {
	nd, ok := m["nd"].(bool)
	if !ok || !nd {
		return false
	}
	_, hasType := m["type"]
	_, hasShape := m["shape"]
	_, hasData := m["data"]
	return hasType && hasShape && hasData
}

func decodeArray(m map[string]any) (*tensor.Raw, error) {
	typeStr, ok := m["type"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or non-string dtype descriptor")
	}
	dtype, err := parseNumpyDType(typeStr)
	if err != nil {
		return nil, err
	}

	shape, err := decodeShape(m["shape"])
	if err != nil {
		return nil, err
	}

	var data []byte
	switch d := m["data"].(type) {
	case []byte:
		data = d
	case string:
		data = []byte(d)
	default:
		return nil, fmt.Errorf("unexpected data encoding %T", m["data"])
	}

	array, err := tensor.FromBytes(dtype, shape, data)
	if err != nil {
		return nil, err
	}
	return array, nil
}

func decodeShape(v any) (tensor.Shape, error) {
	dims, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected shape encoding %T", v)
	}
	shape := make(tensor.Shape, 0, len(dims))
	for _, d := range dims {
		switch n := d.(type) {
		case int8:
			shape = append(shape, int(n))
		case int16:
			shape = append(shape, int(n))
		case int32:
			shape = append(shape, int(n))
		case int64:
			shape = append(shape, int(n))
		case uint8:
			shape = append(shape, int(n))
		case uint16:
			shape = append(shape, int(n))
		case uint32:
			shape = append(shape, int(n))
		case uint64:
			shape = append(shape, int(n))
		case int:
			shape = append(shape, n)
		default:
			return nil, fmt.Errorf("unexpected dimension encoding %T", d)
		}
	}
	return shape, nil
}

// numpyDTypes maps numpy dtype.str descriptors (little-endian or
// byte-order-agnostic) to data types. "bfloat16" appears as a plain name
// because ml_dtypes registers it without an order prefix.
var numpyDTypes = map[string]tensor.DataType{
	"<f2":      tensor.Float16,
	"<f4":      tensor.Float32,
	"<f8":      tensor.Float64,
	"<i2":      tensor.Int16,
	"<i4":      tensor.Int32,
	"<i8":      tensor.Int64,
	"<u2":      tensor.Uint16,
	"<u4":      tensor.Uint32,
	"<u8":      tensor.Uint64,
	"|i1":      tensor.Int8,
	"|u1":      tensor.Uint8,
	"|b1":      tensor.Bool,
	"bfloat16": tensor.BFloat16,
}

func parseNumpyDType(s string) (tensor.DataType, error) {
	if dt, ok := numpyDTypes[s]; ok {
		return dt, nil
	}
	return tensor.Invalid, fmt.Errorf("unsupported numpy dtype descriptor %q", s)
}
