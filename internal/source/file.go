package source

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
)

//go:embed bundled/shelters.json
var bundledShelters []byte

type FileSource struct {
	path   string
	format Format
}

// NewFileSource reads shelters from a local file. An empty format is inferred from the
// file extension.
func NewFileSource(path string, format Format) (*FileSource, error) {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	return &FileSource{path: path, format: format}, nil
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", s.path, err)
	}
	defer f.Close()

	return Decode(f, s.format)
}

// BytesSource decodes an in-memory document on every fetch.
type BytesSource struct {
	name   string
	data   []byte
	format Format
}

func NewBytesSource(name string, data []byte, format Format) *BytesSource {
	return &BytesSource{name: name, data: data, format: format}
}

// Bundled returns the dataset shipped inside the binary.
func Bundled() *BytesSource {
	return NewBytesSource("bundled", bundledShelters, FormatJSON)
}

func (s *BytesSource) Name() string { return s.name }

func (s *BytesSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(s.data), s.format)
}
