package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/evyataryagoni/ipgeolocation"
	"github.com/evyataryagoni/ipgeolocation/internal/config"
	"github.com/evyataryagoni/ipgeolocation/internal/handler"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type lookupFlags struct {
	key      string
	baseURL  string
	timeout  time.Duration
	retries  int
	logLevel string
	compact  bool
}

func newLookupCmd() *cobra.Command {
	var flags lookupFlags

	cmd := &cobra.Command{
		Use:   "lookup [ip ...]",
		Short: "Look up one or more IP addresses",
		Long: `Look up the geolocation of the given IP addresses and print them as JSON.
Without arguments the caller's own public address is looked up.`,
		Example: `  ipgeo lookup
  ipgeo lookup 8.8.8.8
  ipgeo lookup 8.8.8.8 1.1.1.1 --timeout 3s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.key, "key", "", "provider API key (default $IPGEO_API_KEY)")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "provider base URL (default $IPGEO_BASE_URL or "+ipgeolocation.DefaultBaseURL+")")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per request timeout (default $IPGEO_TIMEOUT or 10s)")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "extra attempts after a network error")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "warn", "log level written to stderr")
	cmd.Flags().BoolVar(&flags.compact, "compact", false, "print JSON without indentation")

	return cmd
}

func runLookup(cmd *cobra.Command, flags lookupFlags, args []string) error {
	cfg := config.Load()
	cfg.LogLevel = flags.logLevel
	cfg.LogPretty = true

	if cmd.Flags().Changed("key") {
		cfg.APIKey = flags.key
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if cmd.Flags().Changed("retries") {
		cfg.MaxRetries = flags.retries
	}

	client, err := ipgeolocation.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()

	if len(args) <= 1 {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}

		result, err := client.Lookup(cmd.Context(), target, cfg.APIKey)
		if err != nil {
			return err
		}
		return writeJSON(out, result, flags.compact)
	}

	results := client.LookupMany(cmd.Context(), args, cfg.APIKey)

	items := lo.Map(results, func(res models.BatchResult, _ int) handler.BatchItem {
		return handler.NewBatchItem(res)
	})
	if err := writeJSON(out, handler.BatchResponse{Results: items}, flags.compact); err != nil {
		return err
	}

	failed := lo.Filter(results, func(res models.BatchResult, _ int) bool {
		return res.Err != nil
	})
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d lookups failed", len(failed), len(results))
	}
	return nil
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
