package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// Verify runs the shallow consistency check over an exported directory:
// every .raw file must have a parseable .shape sibling and a byte length
// equal to the declared shape times the dtype width, and every .shape
// file must have a .raw sibling. It returns the number of pairs checked.
func Verify(dir string) (int, error) {
	pairs := 0
	err := fs.WalkDir(os.DirFS(dir), ".", func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("traverse %q: %w", dir, err)
		}
		if entry.IsDir() {
			return nil
		}
		if filepath.Ext(filePath) == ShapeExt {
			stem := strings.TrimSuffix(filePath, ShapeExt)
			if _, err := os.Stat(filepath.Join(dir, stem+RawExt)); err != nil {
				return fmt.Errorf("%q has no raw sibling: %w", filePath, err)
			}
			return nil
		}
		if filepath.Ext(filePath) != RawExt {
			return nil
		}
		stem := strings.TrimSuffix(filePath, RawExt)
		shapePath := filepath.Join(dir, stem+ShapeExt)
		shapeBytes, err := os.ReadFile(shapePath)
		if err != nil {
			return fmt.Errorf("missing or unreadable shape for %q: %w", filePath, err)
		}
		dtype, shape, err := ParseShape(string(shapeBytes))
		if err != nil {
			return fmt.Errorf("parse shape from %q: %w", shapePath, err)
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", filePath, err)
		}
		if want := int64(shape.ByteSize(dtype)); info.Size() != want {
			return fmt.Errorf("%q has %d bytes, but shape %s requires %d",
				filePath, info.Size(), strings.TrimSpace(string(shapeBytes)), want)
		}
		pairs++
		return nil
	})
	if err != nil {
		return pairs, err
	}
	return pairs, nil
}

// VerifyAgainst runs the deep check: for every leaf of the source tree tr,
// the exported pair must exist, declare the same dtype and shape, and the
// .raw content must hash (xxh3) to the same value as the in-memory buffer.
// It returns the number of leaves verified.
func VerifyAgainst(tr *tree.Tree[*tensor.Raw], dir string) (int, error) {
	leaves := 0
	for path, array := range tr.Leaves() {
		stem := filepath.Join(append([]string{dir}, path...)...)

		shapeBytes, err := os.ReadFile(stem + ShapeExt)
		if err != nil {
			return leaves, fmt.Errorf("leaf %q: %w", path.String(), err)
		}
		if got, want := strings.TrimSpace(string(shapeBytes)), SerializeShape(array.DType(), array.Shape()); got != want {
			return leaves, fmt.Errorf("leaf %q: shape file says %q, source says %q", path.String(), got, want)
		}

		data, err := os.ReadFile(stem + RawExt)
		if err != nil {
			return leaves, fmt.Errorf("leaf %q: %w", path.String(), err)
		}
		if got, want := xxh3.Hash(data), xxh3.Hash(array.Data()); got != want {
			return leaves, fmt.Errorf("leaf %q: content mismatch (xxh3 %016x != %016x)", path.String(), got, want)
		}
		leaves++
	}
	return leaves, nil
}
