package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rawtree-ml/rawtree/internal/loader"
)

// writeFixtureCheckpoint creates a directory with one safetensors file
// holding layer0.w = [[1 2][3 4]] float32.
func writeFixtureCheckpoint(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	header := map[string]any{
		"layer0.w": map[string]any{
			"dtype":        "F32",
			"shape":        []int{2, 2},
			"data_offsets": []int64{0, 16},
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, 16)
	for i, v := range []float32{1, 2, 3, 4} {
		binary.LittleEndian.PutUint32(payload[4*i:], math.Float32bits(v))
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON)))
	buf.Write(headerJSON)
	buf.Write(payload)
	if err := os.WriteFile(filepath.Join(dir, "model.safetensors"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunConvert(t *testing.T) {
	source := writeFixtureCheckpoint(t)
	target := filepath.Join(t.TempDir(), "out")

	var out bytes.Buffer
	if err := runConvert(source, target, loader.Options{}, &out); err != nil {
		t.Fatalf("runConvert failed: %v", err)
	}

	if !strings.Contains(out.String(), "Source directory: "+source) {
		t.Errorf("missing resolved source in output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Target directory: "+target) {
		t.Errorf("missing resolved target in output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Wrote 1 tensor pairs") {
		t.Errorf("missing pair count in output:\n%s", out.String())
	}

	raw, err := os.ReadFile(filepath.Join(target, "layer0", "w.raw"))
	if err != nil {
		t.Fatalf("read exported raw: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("raw file has %d bytes, want 16", len(raw))
	}
	shape, err := os.ReadFile(filepath.Join(target, "layer0", "w.shape"))
	if err != nil {
		t.Fatalf("read exported shape: %v", err)
	}
	if string(shape) != "float32,2,2" {
		t.Errorf("shape file: got %q, want %q", shape, "float32,2,2")
	}
}

func TestRunConvertDefaultTarget(t *testing.T) {
	source := writeFixtureCheckpoint(t)

	var out bytes.Buffer
	if err := runConvert(source, "", loader.Options{}, &out); err != nil {
		t.Fatalf("runConvert failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(source, "raw", "layer0", "w.raw")); err != nil {
		t.Errorf("default target <source>/raw not written: %v", err)
	}
}

func TestRunConvertBadSourceWritesNothing(t *testing.T) {
	source := t.TempDir() // no checkpoint inside
	target := filepath.Join(t.TempDir(), "out")

	var out bytes.Buffer
	if err := runConvert(source, target, loader.Options{}, &out); err == nil {
		t.Fatal("expected error for invalid checkpoint directory")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("target directory was created despite load failure")
	}
}

func TestRunVerify(t *testing.T) {
	source := writeFixtureCheckpoint(t)
	target := filepath.Join(t.TempDir(), "out")

	var out bytes.Buffer
	if err := runConvert(source, target, loader.Options{}, &out); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := runVerify(target, "", loader.Options{}, &out); err != nil {
		t.Fatalf("shallow verify failed: %v", err)
	}
	if err := runVerify(target, source, loader.Options{}, &out); err != nil {
		t.Fatalf("deep verify failed: %v", err)
	}

	// Corrupt the exported bytes; the deep check must notice.
	rawPath := filepath.Join(target, "layer0", "w.raw")
	data, err := os.ReadFile(rawPath)
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 0xFF
	if err := os.WriteFile(rawPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runVerify(target, source, loader.Options{}, &out); err == nil {
		t.Error("deep verify passed on corrupted data")
	}
}

func TestRunInspect(t *testing.T) {
	source := writeFixtureCheckpoint(t)

	var out bytes.Buffer
	if err := runInspect(source, true, loader.Options{}, &out); err != nil {
		t.Fatalf("inspect checkpoint failed: %v", err)
	}
	if !strings.Contains(out.String(), "layer0/w") || !strings.Contains(out.String(), "float32[2 2]") {
		t.Errorf("inspect output missing tensor line:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "mean=2.5") {
		t.Errorf("inspect output missing stats:\n%s", out.String())
	}

	// Exported trees are inspectable too.
	target := filepath.Join(t.TempDir(), "out")
	if err := runConvert(source, target, loader.Options{}, &out); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := runInspect(target, false, loader.Options{}, &out); err != nil {
		t.Fatalf("inspect exported tree failed: %v", err)
	}
	if !strings.Contains(out.String(), "raw tensor tree") {
		t.Errorf("inspect did not detect exported tree:\n%s", out.String())
	}
}
