package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
)

// NewCorrelateCmd prints the Pearson correlation matrix of the catalog.
func NewCorrelateCmd() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Print the correlation matrix of catalog properties",
		Long: "Columns may be property codes (Su, Sy, E, G, mu, Ro), canonical names or the\n" +
			"auxiliary numeric columns A5, Bhn, pH and HV. Without --columns the six\n" +
			"analysed properties are used.",
		Example: "  matsel correlate --columns Su,Sy,Bhn",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := platformOf(cmd)
			if err != nil {
				return err
			}
			m, err := p.Recommendation.Correlation(cmd.Context(), columns)
			if err != nil {
				return err
			}
			return PrintResult(cmd, m, correlationView(m))
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "comma-separated numeric columns")
	return cmd
}

func correlationView(m *material.CorrelationMatrix) view {
	labels := make([]string, len(m.Labels))
	for i, l := range m.Labels {
		labels[i] = shortLabel(l)
	}
	rows := make([][]string, 0, m.Size())
	for i := 0; i < m.Size(); i++ {
		row := []string{labels[i]}
		for j := 0; j < m.Size(); j++ {
			row = append(row, formatCorrelation(m.At(i, j), i == j))
		}
		rows = append(rows, row)
	}
	return view{header: append([]string{""}, labels...), rows: rows}
}

// shortLabel prefers the property code over the canonical column name.
func shortLabel(column string) string {
	if p, err := material.ParseProperty(column); err == nil {
		return p.Code()
	}
	return column
}

func formatCorrelation(v float64, diagonal bool) string {
	s := fmt.Sprintf("%+.3f", v)
	switch {
	case diagonal:
		return s
	case v >= 0.7:
		return color.GreenString(s)
	case v <= -0.7:
		return color.RedString(s)
	default:
		return s
	}
}

// NewPCACmd projects the catalog onto its first two principal axes and flags
// the current recommendations.
func NewPCACmd() *cobra.Command {
	var (
		qf   *queryFlags
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "pca",
		Short: "Project the catalog onto two principal components",
		Long: "The principal axes are found by power iteration from a random start, so\n" +
			"their sign may flip between runs. Pass --seed for reproducible output.",
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
			ranked, err := p.Recommendation.Rank(cmd.Context(), q)
			if err != nil {
				return err
			}

			var seedPtr *int64
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}
			res, err := p.Recommendation.Projection(cmd.Context(), material.Labels(ranked.Ranked), seedPtr)
			if err != nil {
				return err
			}
			return PrintResult(cmd, res, projectionView(res))
		},
	}
	qf = bindQueryFlags(cmd)
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the initial power-iteration vectors")
	return cmd
}

func projectionView(res *material.PCAResult) view {
	props := make([]string, len(res.Properties))
	for i, p := range res.Properties {
		props[i] = p.Code()
	}
	rows := make([][]string, 0, len(res.Projections))
	for _, pr := range res.Projections {
		mark := ""
		label := pr.Label
		if pr.Recommended {
			mark = "*"
			label = color.GreenString(label)
		}
		rows = append(rows, []string{label, formatFloat(pr.X, 4), formatFloat(pr.Y, 4), mark})
	}
	return view{
		lines:  []string{"Properties: " + strings.Join(props, ", ")},
		header: []string{"Material", "PC1", "PC2", "Recommended"},
		rows:   rows,
	}
}
