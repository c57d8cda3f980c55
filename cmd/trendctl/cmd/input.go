package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"TrendChart/internal/domain/models"
	"TrendChart/pkg/util"
)

// observationInput is one line of the input file: a date (RFC3339, yyyy-MM-dd or epoch ms,
// negative before 1970) and a count.
type observationInput struct {
	Date  json.RawMessage `json:"date"`
	Count int64           `json:"count"`
}

// chartFlags are shared by render and fetch.
type chartFlags struct {
	interval       int
	dataRange      int
	input          string
	title          string
	timeAxisLabel  string
	valueAxisLabel string
	excludeFuture  bool
	width          int
	height         int
	pretty         bool
}

func (f *chartFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.interval, "interval", "i", 7, "bucket width in days")
	cmd.Flags().IntVarP(&f.dataRange, "range", "r", 30, "days of history to show")
	cmd.Flags().StringVarP(&f.input, "input", "f", "", "JSON file of [{\"date\":...,\"count\":n}], date as RFC3339, yyyy-MM-dd or signed epoch ms ('-' for stdin)")
	cmd.Flags().StringVar(&f.title, "title", "", "chart title")
	cmd.Flags().StringVar(&f.timeAxisLabel, "time-label", "", "time axis label")
	cmd.Flags().StringVar(&f.valueAxisLabel, "value-label", "", "value axis label")
	cmd.Flags().BoolVar(&f.excludeFuture, "exclude-future", false, "drop observations after today")
	cmd.Flags().IntVar(&f.width, "width", 0, "chart width")
	cmd.Flags().IntVar(&f.height, "height", 0, "chart height")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent JSON output")
}

func (f *chartFlags) request(dates, counts []int64) *models.ChartRequest {
	return &models.ChartRequest{
		Width:          f.width,
		Height:         f.height,
		DateInterval:   f.interval,
		DataRange:      f.dataRange,
		Dates:          dates,
		Counts:         counts,
		Title:          f.title,
		TimeAxisLabel:  f.timeAxisLabel,
		ValueAxisLabel: f.valueAxisLabel,
		TZ:             timezone,
		ExcludeFuture:  f.excludeFuture,
	}
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	switch path {
	case "":
		return io.NopCloser(strings.NewReader("[]")), nil
	case "-":
		return io.NopCloser(stdin), nil
	default:
		return os.Open(path)
	}
}

// readObservations decodes the input into parallel epoch-ms date and count lists.
func readObservations(r io.Reader, loc *time.Location) ([]int64, []int64, error) {
	var in []observationInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("decode observations: %w", err)
	}
	dates := make([]int64, 0, len(in))
	counts := make([]int64, 0, len(in))
	for i, o := range in {
		raw := string(o.Date)
		var s string
		if err := json.Unmarshal(o.Date, &s); err != nil {
			s = raw // bare number
		}
		t, ok := util.ParseTime(s, loc)
		if !ok {
			return nil, nil, fmt.Errorf("observation %d: unparseable date %s", i, raw)
		}
		dates = append(dates, t.UnixMilli())
		counts = append(counts, o.Count)
	}
	return dates, counts, nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
