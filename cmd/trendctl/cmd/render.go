package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"TrendChart/internal/services/render"
	"TrendChart/internal/usecase"
	"TrendChart/pkg/metrics"
	"TrendChart/pkg/util"
)

var (
	renderFlags chartFlags
	today       string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compute a chart locally",
	Long: `Aggregate the input observations into buckets of --interval days ending on
today and print the chart dataset.

Examples:
  trendctl render -i 7 -r 30 -f obs.json
  trendctl render -i 1 -r 14 -f - --today 2024-01-31 --tz Europe/Berlin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVar(&today, "today", "", "override today (yyyy-MM-dd or RFC3339)")
}

func runRender(ctx context.Context, stdin io.Reader, out io.Writer) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("--tz: %w", err)
	}

	clock := time.Now
	if today != "" {
		t, ok := util.ParseTime(today, loc)
		if !ok {
			return fmt.Errorf("--today: cannot parse %q", today)
		}
		clock = func() time.Time { return t }
	}

	in, err := openInput(renderFlags.input, stdin)
	if err != nil {
		return err
	}
	defer in.Close()
	dates, counts, err := readObservations(in, loc)
	if err != nil {
		return err
	}

	gen := usecase.NewChartGenerator(render.NewDatasetRenderer(), metrics.NewWithRegistry(prometheus.NewRegistry()),
		usecase.WithClock(clock),
		usecase.WithLocation(loc),
	)
	gen.SetLogger(logger)

	res, err := gen.GenerateResponse(ctx, usecase.ParamsFromRequest("cli", renderFlags.request(dates, counts)))
	if err != nil {
		return err
	}
	return writeJSON(out, res, renderFlags.pretty)
}
