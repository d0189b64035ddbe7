package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// NewCatalogCmd groups the catalog commands.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and replace the material catalog",
	}
	cmd.AddCommand(newCatalogOverviewCmd(), newCatalogImportCmd())
	return cmd
}

func newCatalogOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show record count and property ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			ov, err := p.Catalog.Overview(cmd.Context())
			if err != nil {
				return err
			}
			return PrintResult(cmd, ov, overviewView(ov))
		},
	}
}

func overviewView(ov *material.Overview) view {
	rows := make([][]string, 0, len(ov.Ranges))
	for _, r := range ov.Ranges {
		lo, hi := "-", "-"
		if r.Present {
			lo = strconv.FormatFloat(r.Min, 'g', 6, 64)
			hi = strconv.FormatFloat(r.Max, 'g', 6, 64)
		}
		rows = append(rows, []string{r.Property.Code(), r.Property.DisplayName(), r.Property.Unit(), lo, hi, strconv.Itoa(r.Count)})
	}
	return view{
		lines: []string{
			fmt.Sprintf("Catalog %s from %s", color.CyanString(ov.Version), ov.Source),
			fmt.Sprintf("%d materials, loaded %s", ov.Count, ov.LoadedAt.Format("2006-01-02 15:04:05 MST")),
		},
		header: []string{"Code", "Property", "Unit", "Min", "Max", "Count"},
		rows:   rows,
	}
}

func newCatalogImportCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the stored catalog with a CSV file",
		Long: "The file is validated, stored in the configured database and object\n" +
			"storage, and announced on the event bus. Without any store configured the\n" +
			"import only lasts for this invocation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeCatalogNotFound, "failed to open catalog file").WithDetail(args[0])
			}
			defer f.Close()

			if source == "" {
				source = filepath.Base(args[0])
			}
			res, err := p.Catalog.Import(cmd.Context(), f, source)
			if err != nil {
				return err
			}

			lines := []string{fmt.Sprintf("%s imported %d materials as version %s", color.GreenString("OK:"), res.Records, res.Version)}
			if res.Skipped > 0 || res.Invalid > 0 {
				lines = append(lines, color.YellowString("skipped %d rows without properties, read %d unparsable cells as missing", res.Skipped, res.Invalid))
			}
			if !res.Persisted && !res.Uploaded {
				lines = append(lines, color.YellowString("no catalog store is configured; the import was not saved"))
			}
			return PrintResult(cmd, res, view{lines: lines})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source label recorded with the import (default: file name)")
	return cmd
}
