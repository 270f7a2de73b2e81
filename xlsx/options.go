package xlsx

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

type options struct {
	mem      memory.Allocator
	logger   *slog.Logger
	password string
}

// Option configures a Reader.
type Option func(*options)

func defaultOptions() options {
	return options{
		mem:    memory.DefaultAllocator,
		logger: slog.Default(),
	}
}

// WithAllocator sets the allocator used for records built by ReadBatch.
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

// WithPassword opens an encrypted workbook.
func WithPassword(password string) Option {
	return func(o *options) {
		o.password = password
	}
}
