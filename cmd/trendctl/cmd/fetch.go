package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"TrendChart/internal/domain/models"
	xhttp "TrendChart/pkg/http"
)

// observations above this count are sent as a JSON body instead of query parameters
const maxQueryObservations = 200

var (
	fetchFlags chartFlags
	serverURL  string
	timeout    time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Request a chart from a running server",
	Long: `Send the input observations to /api/charts/generate and print the chart dataset.

Examples:
  trendctl fetch --server http://localhost:8080 -i 7 -r 30 -f obs.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchFlags.register(fetchCmd)
	fetchCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "trendchart server base URL")
	fetchCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

func runFetch(ctx context.Context, stdin io.Reader, out io.Writer) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("--tz: %w", err)
	}
	in, err := openInput(fetchFlags.input, stdin)
	if err != nil {
		return err
	}
	defer in.Close()
	dates, counts, err := readObservations(in, loc)
	if err != nil {
		return err
	}

	req := fetchFlags.request(dates, counts)
	endpoint, err := url.JoinPath(serverURL, "/api/charts/generate")
	if err != nil {
		return fmt.Errorf("--server: %w", err)
	}

	opts := &xhttp.RequestOptions{Method: http.MethodGet, URL: endpoint, QueryParams: queryParams(req)}
	if len(dates) > maxQueryObservations {
		opts = &xhttp.RequestOptions{Method: http.MethodPost, URL: endpoint, Body: req}
	}

	var res models.ChartResponse
	client := xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("trendctl/"+version))
	if err := client.DecodeAPIResponse(ctx, opts, &res); err != nil {
		return err
	}
	return writeJSON(out, &res, fetchFlags.pretty)
}

func queryParams(req *models.ChartRequest) map[string][]string {
	q := map[string][]string{
		"dateInterval": {strconv.Itoa(req.DateInterval)},
		"dataRange":    {strconv.Itoa(req.DataRange)},
	}
	if req.Width > 0 {
		q["width"] = []string{strconv.Itoa(req.Width)}
	}
	if req.Height > 0 {
		q["height"] = []string{strconv.Itoa(req.Height)}
	}
	for _, kv := range [][2]string{
		{"title", req.Title},
		{"timeAxisLabel", req.TimeAxisLabel},
		{"valueAxisLabel", req.ValueAxisLabel},
		{"tz", req.TZ},
	} {
		if kv[1] != "" {
			q[kv[0]] = []string{kv[1]}
		}
	}
	if req.ExcludeFuture {
		q["excludeFuture"] = []string{"true"}
	}
	q["date"] = formatInts(req.Dates)
	q["count"] = formatInts(req.Counts)
	return q
}

func formatInts(vs []int64) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, strconv.FormatInt(v, 10))
	}
	return out
}

