package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// queryFlags are shared by every command that ranks the catalog.
type queryFlags struct {
	k            int
	requirements *requirementFlags
}

func bindQueryFlags(cmd *cobra.Command) *queryFlags {
	qf := &queryFlags{}
	cmd.Flags().IntVarP(&qf.k, "k", "k", 0, "number of recommendations (default from configuration)")
	qf.requirements = bindRequirementFlags(cmd.Flags())
	return qf
}

func (qf *queryFlags) query() (recommendation.Query, error) {
	if qf.k < 0 {
		return recommendation.Query{}, errors.InputPrecondition("k must be at least 1").WithDetailf("k=%d", qf.k)
	}
	spec, err := qf.requirements.spec()
	if err != nil {
		return recommendation.Query{}, err
	}
	return recommendation.Query{Requirements: spec, K: qf.k}, nil
}

// NewRankCmd ranks the catalog against the requirements.
func NewRankCmd() *cobra.Command {
	var qf *queryFlags
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank materials by weighted distance to the requirements",
		Example: "  matsel rank --su 900:1 --sy 600 -k 3\n" +
			"  matsel rank --catalog steels.csv -o json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			q, err := qf.query()
			if err != nil {
				return err
			}
			res, err := p.Recommendation.Rank(cmd.Context(), q)
			if err != nil {
				return err
			}
			return PrintResult(cmd, res, rankView(res))
		},
	}
	qf = bindQueryFlags(cmd)
	return cmd
}

func rankView(res *recommendation.RankResult) view {
	header := append([]string{"#", "Material"}, propertyHeaders()...)
	header = append(header, "Score")
	rows := make([][]string, 0, len(res.Ranked))
	for _, m := range res.Ranked {
		row := []string{strconv.Itoa(m.Position), m.Label()}
		for _, p := range material.Properties {
			row = append(row, formatValue(m.Record, p))
		}
		rows = append(rows, append(row, formatFloat(m.DistanceScore, 4)))
	}
	return view{
		lines:  []string{fmt.Sprintf("Top %d of catalog %s", len(res.Ranked), color.CyanString(res.CatalogVersion))},
		header: header,
		rows:   rows,
	}
}

// NewDeviationsCmd shows how far each recommendation is from every target.
func NewDeviationsCmd() *cobra.Command {
	var (
		qf      *queryFlags
		byTotal bool
	)
	cmd := &cobra.Command{
		Use:   "deviations",
		Short: "Show per-property deviations of the recommended materials",
		Long: "Deviations are percentages of the target, or plain differences when the\n" +
			"target is 0. Colors band the magnitude: green ≤5, cyan ≤15, yellow ≤30, red above.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			q, err := qf.query()
			if err != nil {
				return err
			}
			res, err := p.Recommendation.Deviations(cmd.Context(), q)
			if err != nil {
				return err
			}
			rows := res.ByScore
			if byTotal {
				rows = res.ByTotal
			}
			return PrintResult(cmd, res, deviationView(rows))
		},
	}
	qf = bindQueryFlags(cmd)
	cmd.Flags().BoolVar(&byTotal, "by-total", false, "order by total absolute deviation instead of score")
	return cmd
}

func deviationView(devs []material.RecordDeviation) view {
	header := append([]string{"#", "Material"}, propertyHeaders()...)
	header = append(header, "Total")
	rows := make([][]string, 0, len(devs))
	for _, d := range devs {
		row := []string{strconv.Itoa(d.Position), d.Label}
		for _, pd := range d.Properties {
			row = append(row, formatDeviation(pd))
		}
		rows = append(rows, append(row, formatFloat(d.TotalAbsolute, 1)))
	}
	return view{header: header, rows: rows}
}

// NewExportCmd writes the ranked list as CSV.
func NewExportCmd() *cobra.Command {
	var (
		qf   *queryFlags
		file string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the recommendations as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			q, err := qf.query()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create export file").WithDetail(file)
				}
				defer f.Close()
				w = f
			}
			res, err := p.Recommendation.Export(cmd.Context(), q, w)
			if err != nil {
				return err
			}
			if file == "" {
				return nil
			}

			lines := []string{fmt.Sprintf("%s %d materials written to %s", color.GreenString("OK:"), res.Records, file)}
			if res.Upload != nil {
				lines = append(lines, "uploaded: "+res.Upload.URL)
			}
			return PrintResult(cmd, res, view{lines: lines})
		},
	}
	qf = bindQueryFlags(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "write to file instead of stdout")
	return cmd
}
