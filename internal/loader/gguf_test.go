package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/x448/float16"

	"github.com/rawtree-ml/rawtree/internal/gguf"
	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

type ggufTestTensor struct {
	name string
	dims []uint64 // Innermost-first, as stored on disk.
	typ  gguf.TensorType
	data []byte
}

// writeGGUF builds a version-3 little-endian GGUF file with a
// general.name key and the given tensors.
func writeGGUF(t *testing.T, path string, tensors []ggufTestTensor) {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian
	writeStr := func(s string) {
		binary.Write(&buf, le, uint64(len(s)))
		buf.WriteString(s)
	}

	binary.Write(&buf, le, gguf.MagicLE)
	binary.Write(&buf, le, uint32(3))
	binary.Write(&buf, le, uint64(len(tensors)))
	binary.Write(&buf, le, uint64(1)) // kv count

	writeStr("general.name")
	binary.Write(&buf, le, uint32(gguf.ValueTypeString))
	writeStr("test-model")

	offset := uint64(0)
	for _, tt := range tensors {
		writeStr(tt.name)
		binary.Write(&buf, le, uint32(len(tt.dims)))
		for _, d := range tt.dims {
			binary.Write(&buf, le, d)
		}
		binary.Write(&buf, le, uint32(tt.typ))
		binary.Write(&buf, le, offset)
		offset += uint64(len(tt.data))
		offset = (offset + 31) / 32 * 32
	}

	for buf.Len()%gguf.DefaultAlignment != 0 {
		buf.WriteByte(0)
	}
	for _, tt := range tensors {
		buf.Write(tt.data)
		for buf.Len()%gguf.DefaultAlignment != 0 {
			buf.WriteByte(0)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write gguf fixture: %v", err)
	}
}

func f32LE(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func TestOpenGGUFTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	writeGGUF(t, path, []ggufTestTensor{
		// Innermost dim 3, outermost dim 2.
		{name: "blk.0.attn.weight", dims: []uint64{3, 2}, typ: gguf.TypeF32,
			data: f32LE(1, 2, 3, 4, 5, 6)},
	})

	ckpt, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ckpt.Close()

	if ckpt.Format() != FormatGGUF {
		t.Errorf("Format: got %s", ckpt.Format())
	}
	if ckpt.Metadata()["general.name"] != "test-model" {
		t.Errorf("Metadata: got %v", ckpt.Metadata())
	}

	tr, err := ckpt.Tree()
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	w, ok := tr.Get(tree.Path{"blk", "0", "attn", "weight"})
	if !ok {
		t.Fatal("tensor not found under split path")
	}
	// On-disk order is innermost-first; the tree shape reads
	// outermost-first.
	if !w.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("shape: got %v, want [2 3]", w.Shape())
	}
	if !bytes.Equal(w.Data(), f32LE(1, 2, 3, 4, 5, 6)) {
		t.Error("data bytes differ from file contents")
	}
}

func TestOpenGGUFQuantized(t *testing.T) {
	// One Q8_0 block: f16 scale 0.5 followed by 32 int8 quants.
	block := make([]byte, 34)
	binary.LittleEndian.PutUint16(block, float16.Fromfloat32(0.5).Bits())
	for i := 0; i < 32; i++ {
		block[2+i] = byte(int8(i))
	}

	path := filepath.Join(t.TempDir(), "model.gguf")
	writeGGUF(t, path, []ggufTestTensor{
		{name: "tok_embd.weight", dims: []uint64{32}, typ: gguf.TypeQ8_0, data: block},
	})

	ckpt, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := ckpt.Tree(); err == nil {
		t.Error("expected quantized tensor to be rejected without Dequantize")
	}
	ckpt.Close()

	ckpt, err = Open(path, Options{Dequantize: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ckpt.Close()
	tr, err := ckpt.Tree()
	if err != nil {
		t.Fatalf("Tree with Dequantize failed: %v", err)
	}
	w, ok := tr.Get(tree.Path{"tok_embd", "weight"})
	if !ok {
		t.Fatal("tensor not found")
	}
	if w.DType() != tensor.Float32 {
		t.Errorf("dtype after dequantization: got %s", w.DType())
	}
	vals, err := w.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	if vals[3] != 1.5 {
		t.Errorf("dequantized value: got %v, want 1.5", vals[3])
	}
}

func TestOpenDirWithSingleGGUF(t *testing.T) {
	dir := t.TempDir()
	writeGGUF(t, filepath.Join(dir, "model.gguf"), []ggufTestTensor{
		{name: "w", dims: []uint64{2}, typ: gguf.TypeF32, data: f32LE(1, 2)},
	})

	ckpt, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ckpt.Close()
	if ckpt.Format() != FormatGGUF {
		t.Errorf("Format: got %s", ckpt.Format())
	}
}
