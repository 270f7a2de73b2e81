package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/magpierre/xlsxarrow"
	"github.com/magpierre/xlsxarrow/export"
	"github.com/magpierre/xlsxarrow/internal/logging"
	"github.com/magpierre/xlsxarrow/sheet"
	"github.com/magpierre/xlsxarrow/table"
)

type convertFlags struct {
	sheet       string
	batchSize   int
	out         string
	format      string
	compression string
	columns     []string
	where       string
	limit       int64
	workers     int
}

// convertJob is the resolved setting of one convert invocation.
type convertJob struct {
	sel       sheet.Selector
	batchSize int
	format    export.Format
	codec     compress.Compression
	query     table.Options
	out       string
	outIsDir  bool
	outDir    string
	workers   int
}

func newConvertCmd(a *app) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert one sheet of each workbook",
		Long: `Convert one sheet of each workbook and write it as Parquet, CSV, JSON or Arrow.

Without --out each FILE is written to the configured output directory
as <name>.<format>. With a single FILE, --out may name the output file
(its extension picks the format) or "-" for standard output.

Examples:
  xlsx2arrow convert sales.xlsx --sheet 2024 --out sales.parquet
  xlsx2arrow convert *.xlsx --format csv --out exports/ --workers 8
  xlsx2arrow convert book.xlsx --columns id,amount --where "amount > 100" --limit 10 --out -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.resolveConvert(cmd, f, len(args))
			if err != nil {
				return err
			}
			return a.runConvert(cmd.Context(), cmd.OutOrStdout(), job, args)
		},
	}

	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Sheet name or 0-based index (default: first sheet)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Rows read per batch")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", `Output file, directory, or "-" for stdout`)
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: parquet|csv|json|arrow")
	cmd.Flags().StringVar(&f.compression, "compression", "", "Codec: snappy|zstd|gzip|brotli|lz4|none")
	cmd.Flags().StringSliceVar(&f.columns, "columns", nil, "Columns to keep (comma separated)")
	cmd.Flags().StringVar(&f.where, "where", "", `Row filter, e.g. "amount > 10 AND name ~ ann"`)
	cmd.Flags().Int64Var(&f.limit, "limit", 0, "Maximum rows to write")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Workbooks converted concurrently")

	return cmd
}

// resolveConvert merges flags over the loaded configuration.
func (a *app) resolveConvert(cmd *cobra.Command, f convertFlags, files int) (*convertJob, error) {
	flags := cmd.Flags()
	cfg := a.cfg

	job := &convertJob{
		sel:       sheet.ParseSelector(cfg.Convert.Sheet),
		batchSize: cfg.Convert.BatchSize,
		workers:   cfg.Convert.Workers,
		outDir:    cfg.Export.OutDir,
		out:       f.out,
		query: table.Options{
			Columns:   f.columns,
			Predicate: f.where,
			Limit:     f.limit,
		},
	}

	if flags.Changed("sheet") {
		job.sel = sheet.ParseSelector(f.sheet)
	}
	if flags.Changed("batch-size") {
		if f.batchSize <= 0 {
			return nil, fmt.Errorf("--batch-size must be positive, got %d", f.batchSize)
		}
		job.batchSize = f.batchSize
	}
	if flags.Changed("workers") {
		if f.workers <= 0 {
			return nil, fmt.Errorf("--workers must be positive, got %d", f.workers)
		}
		job.workers = f.workers
	}

	if job.out != "" && job.out != "-" {
		if info, err := os.Stat(job.out); err == nil && info.IsDir() {
			job.outIsDir = true
		} else if strings.HasSuffix(job.out, string(os.PathSeparator)) {
			if err := os.MkdirAll(job.out, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create output directory: %w", err)
			}
			job.outIsDir = true
		}
	}
	if files > 1 && job.out != "" && !job.outIsDir {
		return nil, errors.New("--out must be a directory when converting several files")
	}

	var err error
	switch {
	case flags.Changed("format"):
		job.format, err = export.ParseFormat(f.format)
	case job.out != "" && job.out != "-" && !job.outIsDir:
		job.format, err = export.DetectFormat(job.out)
	default:
		job.format, err = export.ParseFormat(cfg.Export.Format)
	}
	if err != nil {
		return nil, err
	}

	codec := cfg.Export.Compression
	if flags.Changed("compression") {
		codec = f.compression
	}
	if job.codec, err = export.ParseCompression(codec); err != nil {
		return nil, err
	}

	return job, nil
}

// destination returns where the table converted from input is written.
func (j *convertJob) destination(input string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + j.format.Extension()

	switch {
	case j.out == "-":
		return "-"
	case j.outIsDir:
		return filepath.Join(j.out, name)
	case j.out != "":
		return j.out
	default:
		return filepath.Join(j.outDir, name)
	}
}

// runConvert converts every input, at most job.workers at a time.
// The first failure cancels the workbooks not yet started.
func (a *app) runConvert(ctx context.Context, stdout io.Writer, job *convertJob, inputs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(job.workers)

	for _, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return a.convertOne(input, job, stdout)
		})
	}
	return g.Wait()
}

func (a *app) convertOne(input string, job *convertJob, stdout io.Writer) error {
	start := time.Now()
	log := logging.WithFile(a.log, input)

	tbl, err := xlsxarrow.ConvertFile(input, job.sel,
		xlsxarrow.WithBatchSize(job.batchSize),
		xlsxarrow.WithLogger(log))
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer tbl.Release()

	out, err := table.Apply(memory.DefaultAllocator, tbl, job.query)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer out.Release()

	dest := job.destination(input)
	if dest == "-" {
		err = export.Write(stdout, out, job.format, export.WithCompression(job.codec))
	} else {
		err = export.WriteFile(dest, out, job.format, export.WithCompression(job.codec))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	log.Info("file converted",
		slog.String("sheet", job.sel.String()),
		slog.Int64("rows", out.NumRows()),
		slog.Int64("columns", out.NumCols()),
		slog.String("format", job.format.String()),
		slog.String("output", dest),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
