package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/activity"
	"github.com/cleared-dev/spend/internal/dashboard"
	"github.com/cleared-dev/spend/internal/importer"
	"github.com/cleared-dev/spend/internal/model"
)

type importOptions struct {
	format   string
	fallback string
	dryRun   bool
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var o importOptions

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Add expenses from a CSV file or the import inbox",
		Long: `Add expenses from a CSV file. Without a file argument every CSV in
<config-dir>/import/ is imported and moved to import/processed/.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := importer.DefaultRegistry().Get(o.format)
			if parser == nil {
				return fmt.Errorf("unknown import format %q: want spend or chase", o.format)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var files []importer.FileInfo
				inbox := len(args) == 0
				if inbox {
					found, err := importer.Scan(a.dir)
					if err != nil {
						return err
					}
					if len(found) == 0 {
						fmt.Fprintf(a.out, "Nothing to import in %s\n", filepath.Join(a.dir, importer.InboxDir))
						return nil
					}
					files = found
				} else {
					files = []importer.FileInfo{{Name: filepath.Base(args[0]), Path: args[0]}}
				}

				if _, err := a.requireUser(ctx); err != nil {
					return err
				}
				ctrl := a.controller()
				if err := ctrl.FetchCategories(ctx); err != nil {
					return err
				}
				for _, f := range files {
					if err := importFile(ctx, a, ctrl, parser, f, o); err != nil {
						return err
					}
					if inbox && !o.dryRun {
						if err := importer.MarkProcessed(a.dir, f.Name); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&o.format, "format", "spend", "file layout: spend or chase")
	cmd.Flags().StringVar(&o.fallback, "category", "Other", "category for rows without one")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "validate without adding anything")

	return cmd
}

func importFile(ctx context.Context, a *app, ctrl *dashboard.Controller, parser importer.Parser, f importer.FileInfo, o importOptions) error {
	drafts, err := readDrafts(f.Path, parser, ctrl, o.fallback)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	if len(drafts) == 0 {
		fmt.Fprintf(a.out, "%s: no expenses found\n", f.Name)
		return nil
	}
	if o.dryRun {
		fmt.Fprintf(a.out, "%s: %d expense(s) ready to import\n", f.Name, len(drafts))
		return nil
	}

	created, err := ctrl.AddExpenses(ctx, drafts)
	if len(created) > 0 {
		details := fmt.Sprintf("%s: %d expense(s)", f.Name, len(created))
		a.record(activity.ActionImport, 0, details)
		fmt.Fprintf(a.out, "Imported %d expense(s) from %s\n", len(created), f.Name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return nil
}

func readDrafts(path string, parser importer.Parser, ctrl *dashboard.Controller, fallback string) ([]model.Draft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := parser.Parse(file)
	if err != nil {
		return nil, err
	}
	return importer.Drafts(rows, ctrl.Categories(), fallback)
}
