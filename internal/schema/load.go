package schema

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed recruiting.json
var recruitingDescriptor []byte

// maxDescriptorBytes bounds descriptors read from files and object stores.
const maxDescriptorBytes = 1 << 20

const (
	SourceEmbedded     = "embedded"
	sourceFilePrefix   = "file:"
	sourceObjectPrefix = "object:"
)

// ObjectReader is the subset of storage.ObjectStore needed to fetch a
// descriptor.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Default returns the recruiting-domain descriptor compiled into the binary.
func Default() (Descriptor, error) {
	return Parse(recruitingDescriptor)
}

func Parse(raw []byte) (Descriptor, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var descriptor Descriptor
	if err := decoder.Decode(&descriptor); err != nil {
		return Descriptor{}, fmt.Errorf("%w: decode: %v", ErrInvalidDescriptor, err)
	}
	if err := descriptor.Validate(); err != nil {
		return Descriptor{}, err
	}
	return descriptor, nil
}

func LoadFile(path string) (Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("open schema descriptor %s: %w", path, err)
	}
	defer file.Close()

	raw, err := readLimited(file)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read schema descriptor %s: %w", path, err)
	}
	return Parse(raw)
}

func LoadObject(ctx context.Context, store ObjectReader, key string) (Descriptor, error) {
	if store == nil {
		return Descriptor{}, errors.New("object store is required to load a schema descriptor")
	}
	body, err := store.Get(ctx, key)
	if err != nil {
		return Descriptor{}, fmt.Errorf("get schema descriptor %s: %w", key, err)
	}
	defer body.Close()

	raw, err := readLimited(body)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read schema descriptor %s: %w", key, err)
	}
	return Parse(raw)
}

// Load resolves a source of the form "embedded", "file:<path>" or
// "object:<key>".
func Load(ctx context.Context, source string, store ObjectReader) (Descriptor, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "" || source == SourceEmbedded:
		return Default()
	case strings.HasPrefix(source, sourceFilePrefix):
		return LoadFile(strings.TrimPrefix(source, sourceFilePrefix))
	case strings.HasPrefix(source, sourceObjectPrefix):
		return LoadObject(ctx, store, strings.TrimPrefix(source, sourceObjectPrefix))
	default:
		return Descriptor{}, fmt.Errorf("unsupported schema source %q (want embedded, file:<path> or object:<key>)", source)
	}
}

// Encode renders a descriptor in the format Parse reads.
func Encode(d Descriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema descriptor: %w", err)
	}
	return append(raw, '\n'), nil
}

func readLimited(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxDescriptorBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxDescriptorBytes {
		return nil, fmt.Errorf("descriptor exceeds %d bytes", maxDescriptorBytes)
	}
	return raw, nil
}
