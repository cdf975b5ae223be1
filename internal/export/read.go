package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

// Read loads an exported raw tree back into memory. It walks dir for
// .raw files, requires a sibling .shape file for each, checks that the
// byte length matches the declared shape, and rebuilds the tree with the
// relative path of each stem as the leaf path.
//
// A .raw file without a .shape sibling is skipped; everything else that
// does not add up is an error.
func Read(dir string) (*tree.Tree[*tensor.Raw], error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("raw tree directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("raw tree path %q is not a directory", dir)
	}

	tr := tree.New[*tensor.Raw]()
	err = fs.WalkDir(os.DirFS(dir), ".", func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("traverse %q: %w", dir, err)
		}
		if entry.IsDir() || filepath.Ext(filePath) != RawExt {
			return nil
		}
		stem := strings.TrimSuffix(filePath, RawExt)
		shapePath := filepath.Join(dir, stem+ShapeExt)
		shapeBytes, err := os.ReadFile(shapePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil // .raw without a .shape sibling is not ours.
			}
			return fmt.Errorf("read shape from %q: %w", shapePath, err)
		}
		dtype, shape, err := ParseShape(string(shapeBytes))
		if err != nil {
			return fmt.Errorf("parse shape from %q: %w", shapePath, err)
		}

		rawPath := filepath.Join(dir, filePath)
		data, err := os.ReadFile(rawPath)
		if err != nil {
			return fmt.Errorf("read raw data from %q: %w", rawPath, err)
		}
		array, err := tensor.FromBytes(dtype, shape, data)
		if err != nil {
			return fmt.Errorf("%q does not match shape %q: %w", rawPath, string(shapeBytes), err)
		}
		return tr.Insert(tree.Path(strings.Split(stem, "/")), array)
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}
