// Command explore loads the reference dataset and prints an overview of its
// class balance and lab value distributions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/Skufu/thyronet/internal/dataset"
	"github.com/Skufu/thyronet/internal/logging"
	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/rs/zerolog/log"
)

func main() {
	url := flag.String("url", dataset.DefaultURL, "dataset URL")
	file := flag.String("file", "", "read the dataset from a local file instead of -url")
	timeout := flag.Duration("timeout", 30*time.Second, "download timeout")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	logging.Init("thyronet-explore", "development", "info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rows, err := load(ctx, *file, *url, *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("load dataset")
	}
	if len(rows) == 0 {
		log.Fatal().Msg("dataset is empty")
	}

	summary := thyroid.Summarize(rows)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatal().Err(err).Msg("encode summary")
		}
		return
	}
	if err := printSummary(os.Stdout, summary); err != nil {
		log.Fatal().Err(err).Msg("print summary")
	}
}

func load(ctx context.Context, file, url string, timeout time.Duration) ([]thyroid.DatasetRow, error) {
	if file == "" {
		return dataset.NewHTTPSource(url, timeout, 3).Fetch(ctx)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return dataset.Parse(f)
}

func printSummary(w io.Writer, s thyroid.DatasetSummary) error {
	fmt.Fprintf(w, "Rows: %d\n", s.Rows)
	fmt.Fprintf(w, "Normal: %d  Abnormal: %d  Baseline risk: %.4f\n\n", s.NormalCases, s.AbnormalCases, s.BaselineRisk)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tMIN\tMAX\tMEAN\tNORMAL MEAN\tABNORMAL MEAN")
	for _, f := range s.Features {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n", f.Feature, f.Min, f.Max, f.Mean, f.NormalMean, f.AbnormalMean)
	}
	return tw.Flush()
}
