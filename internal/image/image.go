// Package image persists graphs as compact binary files.
//
// Image layout, one zstd stream over:
//
//	[4 bytes: header length (big-endian)]
//	[header JSON]
//	[payload blob]
//
// The header lists every vertex and edge; payloads live in the blob
// region, addressed by offset and length. A blake3 digest of the blob
// makes corruption detectable, and an optional digest of the compiled
// sources lets callers skip recompilation when nothing changed.
package image

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/objectionary/reo/internal/graph"
)

const (
	// Version is the current image format version.
	Version = 1

	headerLengthSize = 4
	maxHeaderSize    = 64 * 1024 * 1024
)

// ErrCorrupt reports an image that cannot be decoded back into a
// well-formed graph.
var ErrCorrupt = errors.New("corrupt image")

type header struct {
	Version  int           `json:"version"`
	Digest   string        `json:"digest"`
	Source   string        `json:"source,omitempty"`
	Vertices []vertexEntry `json:"vertices"`
	Edges    []edgeEntry   `json:"edges"`
}

type vertexEntry struct {
	ID       uint32   `json:"id"`
	Computed bool     `json:"computed,omitempty"`
	Data     *blobRef `json:"data,omitempty"`
}

type blobRef struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

type edgeEntry struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
	Name string `json:"name"`
}

// Encode serializes the graph. The source digest travels in the
// header untouched; pass "" when the image is not tied to sources.
// Vertices and edges are emitted in sorted order, so the same graph
// always encodes to the same bytes.
func Encode(g *graph.Graph, source string) ([]byte, error) {
	var h header
	h.Version = Version
	h.Source = source
	var blob bytes.Buffer
	for _, id := range g.Vertices() {
		entry := vertexEntry{ID: id, Computed: g.Computed(id)}
		if d, ok := g.Data(id); ok {
			entry.Data = &blobRef{Offset: int64(blob.Len()), Length: int64(len(d))}
			blob.Write(d)
		}
		h.Vertices = append(h.Vertices, entry)
		for _, name := range g.Attrs(id) {
			to, _ := g.Attr(id, name)
			h.Edges = append(h.Edges, edgeEntry{From: id, To: to, Name: name})
		}
	}
	sum := blake3.Sum256(blob.Bytes())
	h.Digest = hex.EncodeToString(sum[:])
	headerJSON, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}
	var raw bytes.Buffer
	headerLen := make([]byte, headerLengthSize)
	binary.BigEndian.PutUint32(headerLen, uint32(len(headerJSON)))
	raw.Write(headerLen)
	raw.Write(headerJSON)
	raw.Write(blob.Bytes())
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(raw.Bytes()); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

// Decode reconstructs a graph from encoded image bytes.
func Decode(data []byte) (*graph.Graph, error) {
	h, blob, err := decode(data)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, entry := range h.Vertices {
		if entry.ID != graph.Root {
			if err := g.Add(entry.ID); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
		}
		if entry.Data == nil {
			continue
		}
		ref := *entry.Data
		if ref.Offset < 0 || ref.Length < 0 ||
			ref.Offset > int64(len(blob)) || ref.Length > int64(len(blob))-ref.Offset {
			return nil, fmt.Errorf("%w: payload of ν%d extends beyond blob", ErrCorrupt, entry.ID)
		}
		d := graph.Data(blob[ref.Offset : ref.Offset+ref.Length])
		if entry.Computed {
			err = g.PutComputed(entry.ID, d)
		} else {
			err = g.Put(entry.ID, d)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	for _, e := range h.Edges {
		if err := g.Bind(e.From, e.To, e.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return g, nil
}

// decode unwraps the zstd stream, checks the framing, verifies the
// blob digest and returns the parsed header with the blob region.
func decode(data []byte) (*header, []byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decompressing: %v", ErrCorrupt, err)
	}
	if len(raw) < headerLengthSize {
		return nil, nil, fmt.Errorf("%w: image of %d bytes is too small", ErrCorrupt, len(raw))
	}
	headerLen := binary.BigEndian.Uint32(raw[:headerLengthSize])
	if headerLen > maxHeaderSize {
		return nil, nil, fmt.Errorf("%w: header of %d bytes is too large", ErrCorrupt, headerLen)
	}
	if int(headerLengthSize+headerLen) > len(raw) {
		return nil, nil, fmt.Errorf("%w: header length exceeds image size", ErrCorrupt)
	}
	var h header
	if err := json.Unmarshal(raw[headerLengthSize:headerLengthSize+headerLen], &h); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing header: %v", ErrCorrupt, err)
	}
	if h.Version != Version {
		return nil, nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, h.Version, Version)
	}
	blob := raw[headerLengthSize+headerLen:]
	sum := blake3.Sum256(blob)
	if hex.EncodeToString(sum[:]) != h.Digest {
		return nil, nil, fmt.Errorf("%w: blob digest mismatch", ErrCorrupt)
	}
	return &h, blob, nil
}

// Save writes the graph to path, creating parent directories. The
// file appears atomically: the image lands in a temporary file first
// and is renamed over the target.
func Save(path string, g *graph.Graph, source string) error {
	data, err := Encode(g, source)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".reo-*")
	if err != nil {
		return fmt.Errorf("creating temporary image: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// Load reads a graph image from path.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	g, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return g, nil
}

// SourceDigest returns the source digest recorded in the image at
// path, without rebuilding the graph. A missing file or a corrupt
// image yields "", so callers can treat both as a stale target.
func SourceDigest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	h, _, err := decode(data)
	if err != nil {
		return ""
	}
	return h.Source
}
