package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/magpierre/xlsxarrow"
	"github.com/magpierre/xlsxarrow/sheet"
)

func newSheetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a workbook with their indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titles, err := xlsxarrow.SheetTitles(args[0], xlsxarrow.WithLogger(a.log))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, title := range titles {
				fmt.Fprintf(w, "%d\t%s\n", i, title)
			}
			return w.Flush()
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	var sheetFlag string

	cmd := &cobra.Command{
		Use:   "schema FILE",
		Short: "Print the inferred column names and types of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := sheet.ParseSelector(a.cfg.Convert.Sheet)
			if cmd.Flags().Changed("sheet") {
				sel = sheet.ParseSelector(sheetFlag)
			}

			tbl, err := xlsxarrow.ConvertFile(args[0], sel,
				xlsxarrow.WithBatchSize(a.cfg.Convert.BatchSize),
				xlsxarrow.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer tbl.Release()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, f := range tbl.Schema().Fields() {
				fmt.Fprintf(w, "%s\t%s\n", f.Name, f.Type)
			}
			fmt.Fprintf(w, "(%d rows)\n", tbl.NumRows())
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&sheetFlag, "sheet", "", "Sheet name or 0-based index (default: first sheet)")
	return cmd
}
