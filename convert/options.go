package convert

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultBatchSize is the number of rows requested from the source per batch.
const DefaultBatchSize = 10000

type options struct {
	batchSize int
	mem       memory.Allocator
	logger    *slog.Logger
}

// Option configures a conversion.
type Option func(*options)

func defaultOptions() options {
	return options{
		batchSize: DefaultBatchSize,
		mem:       memory.DefaultAllocator,
		logger:    slog.Default(),
	}
}

// WithBatchSize sets the maximum rows per streamed batch. Values <= 0 keep the default.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithAllocator sets the allocator used for all Arrow memory.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.mem = mem
		}
	}
}

// WithLogger sets the logger for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
