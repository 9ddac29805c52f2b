package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/dashboard"
	"github.com/cleared-dev/spend/internal/export"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		ff     filterFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered expense list as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			fm, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if _, err := a.requireUser(ctx); err != nil {
					return err
				}
				ctrl := a.controller(dashboard.WithFilter(f))
				if err := ctrl.Mount(ctx); err != nil {
					return err
				}
				s := ctrl.State()

				var w io.Writer = a.out
				if output != "" && output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating %s: %w", output, err)
					}
					defer file.Close()
					w = file
				}
				if err := export.Write(w, fm, s.Expenses, ctrl.Categories()); err != nil {
					return err
				}
				if w != a.out {
					fmt.Fprintf(a.errOut, "Exported %d expense(s) to %s\n", len(s.Expenses), output)
				}
				return nil
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}
