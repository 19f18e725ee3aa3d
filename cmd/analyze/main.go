// Command analyze runs a single pricing analysis from a JSON request file
// and prints the executive summary. It loads the same configuration as the
// server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/api/handlers"
	"github.com/dtslogistics/pricing-agent/internal/bootstrap"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/logging"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/services"
	"github.com/dtslogistics/pricing-agent/internal/utils"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze failed: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	request string
	out     string
	timeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.request, "request", "", "path to the request JSON, or - for stdin")
	fs.StringVar(&opts.out, "out", "validation_results.json", "where to write the full result")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline for the analysis")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.request == "" {
		return opts, errors.New("-request is required")
	}
	return opts, nil
}

// readRequest decodes and validates an analysis request in the same shape
// as the POST /api/v1/analyze body.
func readRequest(ctx context.Context, r io.Reader) (models.ShipmentRequest, error) {
	var req handlers.AnalyzeRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return models.ShipmentRequest{}, fmt.Errorf("invalid request JSON: %w", err)
	}
	if errs := handlers.ValidateRequest(ctx, &req); errs != nil {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Field+": "+e.Message)
		}
		return models.ShipmentRequest{}, utils.NewInputError("invalid request: %s", strings.Join(msgs, "; "))
	}
	return req.Shipment()
}

func openRequest(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	f, err := openRequest(opts.request, stdin)
	if err != nil {
		return err
	}
	shipment, err := readRequest(ctx, f)
	_ = f.Close()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogrus(cfg.LogLevel)
	logger.SetOutput(os.Stderr)

	components, err := bootstrap.Connect(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	source, err := components.LookupSource()
	if err != nil {
		return fmt.Errorf("failed to configure lookup source: %w", err)
	}
	store := services.NewLookupStore(source, components.Timeouts, nil, logger)
	if err := store.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load lookup table: %w", err)
	}
	table, err := store.Snapshot()
	if err != nil {
		return err
	}
	logger.WithField("records", store.Records()).Info("Lookup table loaded")

	analysis, err := components.AnalysisService(time.Now)
	if err != nil {
		return err
	}

	printHeader(stdout, "ADVANCED PRICING AGENT v3.0")
	start := time.Now()
	result, err := analysis.RunAnalysis(ctx, table, shipment)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := writeResult(opts.out, result); err != nil {
		return err
	}
	printSummary(stdout, result)
	fmt.Fprintf(stdout, "\nResults saved to %s (%.1fs)\n", opts.out, elapsed.Seconds())

	if cfg.AI.Enabled {
		if rec := components.Recommender(); rec != nil {
			advice, err := rec.Recommend(ctx, result, "")
			if err != nil {
				logger.WithError(err).Warn("Continuing without AI recommendation")
			} else {
				printHeader(stdout, "AI RECOMMENDATION")
				fmt.Fprintln(stdout, advice.Text)
			}
		}
	}
	return nil
}

func writeResult(path string, result *models.AnalysisResult) error {
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
