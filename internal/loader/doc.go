// Package loader decodes model checkpoints into parameter trees.
//
// This package is the converter's only knowledge of on-disk checkpoint
// layouts. It implements readers for the formats the Go ML ecosystem
// actually encounters:
//   - SafeTensors: single file or sharded directory (Hugging Face standard)
//   - GGUF: the llama.cpp container, optionally dequantized
//   - flax msgpack aggregate: legacy Jax checkpoint directories
//
// Open detects the format from the path and returns a Checkpoint whose
// Tree method materializes every leaf array in host memory. Nothing here
// ever touches an accelerator; buffers live in process memory only.
//
// Example:
//
//	ckpt, err := loader.Open("path/to/model.safetensors", loader.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//	tr, err := ckpt.Tree()
package loader
