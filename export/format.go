package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"
)

var (
	// ErrUnknownFormat is returned for an output format name or extension
	// that is not supported.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrUnknownCompression is returned for an unsupported codec name.
	ErrUnknownCompression = errors.New("unknown compression codec")
)

// Format is an output file format.
type Format int

const (
	FormatParquet Format = iota
	FormatCSV
	FormatJSON
	FormatArrow
)

// String returns the format name as accepted by ParseFormat.
func (f Format) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatArrow:
		return "arrow"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatArrow:
		return ".arrow"
	default:
		return "." + f.String()
	}
}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "parquet", "pq":
		return FormatParquet, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "arrow", "ipc", "feather":
		return FormatArrow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// DetectFormat determines the format from the extension of path.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".arrow", ".ipc", ".feather":
		return FormatArrow, nil
	default:
		return 0, fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
	}
}

// ParseCompression resolves a codec name. An empty name selects snappy.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}
