// quantctl runs the quant operations from the command line and prints JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arg-foo/zaza-sub000/internal/di"
	"github.com/arg-foo/zaza-sub000/internal/usecase"
	"github.com/arg-foo/zaza-sub000/pkg/config"
	xhttp "github.com/arg-foo/zaza-sub000/pkg/http"
)

type cli struct {
	configPath string
	timeout    time.Duration
	cfg        *config.Config
	svc        *usecase.QuantService
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "quantctl",
		Short:         "Quantitative analysis and prediction ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("QUANT_CONFIG"), "config file path, empty for defaults")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		newDistributionCmd(c),
		newMeanReversionCmd(c),
		newRegimeCmd(c),
		newForecastCmd(c),
		newVolatilityCmd(c),
		newMonteCarloCmd(c),
		newBacktestCmd(c),
		newStrategyCmd(c),
		newRiskCmd(c),
		newSnapshotCmd(c),
		newLedgerCmd(c),
		newIngestCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.LoadWithEnv(c.configPath)
	if err != nil {
		return err
	}
	// stdout carries the JSON result; the CLI never publishes events
	cfg.Logging.Output = "stderr"
	cfg.Kafka.Enabled = false
	cfg.Logging.CollectErrors = false
	c.cfg = cfg
	return nil
}

func (c *cli) service() (*usecase.QuantService, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := di.InitializeQuantService(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	c.svc = svc
	return svc, nil
}

// deadline returns a context cancelled on interrupt or after --timeout.
func (c *cli) deadline(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// execute validates req (applying its defaults), runs fn and prints the result.
func (c *cli) execute(cmd *cobra.Command, req any, fn func(context.Context, *usecase.QuantService) (any, error)) error {
	ctx, cancel := c.deadline(cmd)
	defer cancel()
	if req != nil {
		if err := xhttp.ValidateStruct(ctx, req); err != nil {
			return invalid(err)
		}
	}
	svc, err := c.service()
	if err != nil {
		return err
	}
	res, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func invalid(err error) error {
	verrs := xhttp.ValidationErrors(err)
	msgs := make([]string, 0, len(verrs))
	for _, v := range verrs {
		msgs = append(msgs, v.Message)
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
