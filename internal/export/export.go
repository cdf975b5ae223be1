// Package export materializes a parameter tree as a directory of raw
// byte files.
//
// Every leaf array produces two sibling files under the target root,
// named by the leaf's key path: <keys.../leaf>.raw holds the exact byte
// buffer (native layout, no header), <keys.../leaf>.shape holds a single
// UTF-8 line "dtype,dim0,dim1,...". The layout is the contract consumed
// by downstream loaders in any language; see Read for the Go side of it.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// RawExt and ShapeExt are the extensions of the two files written per leaf.
const (
	RawExt   = ".raw"
	ShapeExt = ".shape"
)

// SerializeShape encodes an array's element type and shape as a single
// comma-separated line: the dtype name first, then one base-10 field per
// dimension. A scalar serializes to the dtype name alone.
func SerializeShape(dtype tensor.DataType, shape tensor.Shape) string {
	fields := make([]string, 0, len(shape)+1)
	fields = append(fields, dtype.String())
	for _, dim := range shape {
		fields = append(fields, strconv.Itoa(dim))
	}
	return strings.Join(fields, ",")
}

// ParseShape is the inverse of SerializeShape.
func ParseShape(s string) (tensor.DataType, tensor.Shape, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	dtype, err := tensor.ParseDataType(fields[0])
	if err != nil {
		return tensor.Invalid, nil, err
	}
	shape := make(tensor.Shape, 0, len(fields)-1)
	for _, f := range fields[1:] {
		dim, err := strconv.Atoi(f)
		if err != nil {
			return tensor.Invalid, nil, fmt.Errorf("invalid dimension %q: %w", f, err)
		}
		shape = append(shape, dim)
	}
	if err := shape.Validate(); err != nil {
		return tensor.Invalid, nil, err
	}
	return dtype, shape, nil
}

// Write exports every leaf of tr under targetDir and returns the number
// of file pairs written.
//
// Each key of a leaf's path becomes one directory level, except the last,
// which names the file stem. Parent directories are created as needed.
// Existing files are silently replaced. Keys are used verbatim as path
// segments: a key containing a separator or ".." escapes the target root,
// exactly as the tree dictates.
//
// Write is fail-fast: the first filesystem error aborts the export and
// already-written pairs are left in place.
func Write(tr *tree.Tree[*tensor.Raw], targetDir string) (int, error) {
	pairs := 0
	for path, array := range tr.Leaves() {
		if len(path) == 0 {
			return pairs, fmt.Errorf("leaf with empty path (value %s)", array)
		}
		stem := filepath.Join(append([]string{targetDir}, path...)...)
		if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
			return pairs, fmt.Errorf("create directory for %q: %w", path.String(), err)
		}
		if err := os.WriteFile(stem+RawExt, array.Data(), 0o644); err != nil {
			return pairs, fmt.Errorf("write %s: %w", stem+RawExt, err)
		}
		shapeLine := SerializeShape(array.DType(), array.Shape())
		if err := os.WriteFile(stem+ShapeExt, []byte(shapeLine), 0o644); err != nil {
			return pairs, fmt.Errorf("write %s: %w", stem+ShapeExt, err)
		}
		pairs++
	}
	return pairs, nil
}
