package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/StockGoat/internal/api"
	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/events"
	"github.com/IshaanNene/StockGoat/internal/extractor"
	"github.com/IshaanNene/StockGoat/internal/schedule"
)

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	var distributors []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape distributors once and reconcile the results",
		Long:  "Run one ingestion pass over the given distributors (default: every enabled distributor) and exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			unsubscribe := a.bus.Subscribe("cli", func(ev events.Event) {
				switch p := ev.Payload.(type) {
				case events.DistributorResult:
					fmt.Printf("%-16s found=%d new=%d updated=%d\n", p.Distributor, p.ProductsFound, p.ProductsNew, p.ProductsUpdated)
				case events.DistributorFailure:
					fmt.Printf("%-16s FAILED: %s\n", p.Distributor, p.Error)
				}
			})

			runID, err := a.engine.Start(distributors)
			if err != nil {
				unsubscribe()
				return err
			}
			logger.Info("run started", "run_id", runID)

			done := make(chan struct{})
			go func() {
				a.engine.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				logger.Info("received signal, shutting down...")
				a.engine.Close()
			}
			unsubscribe()

			st := a.engine.Status()
			fmt.Printf("\nRun %s finished: products=%d new=%d updated=%d\n", runID, st.TotalProducts, st.TotalNew, st.TotalUpdated)
			if st.Error != "" {
				fmt.Printf("Last error: %s\n", st.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&distributors, "distributor", "d", nil, "distributor to scrape (repeatable)")
	return cmd
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API and run the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			logger := setupLogger(cfg.Logging)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			hub := events.NewWebSocketHub(logger)
			detach := hub.Attach(a.bus)
			defer func() {
				detach()
				hub.Close()
			}()

			opts := []api.Option{api.WithWebSocket(hub)}
			if a.metrics != nil {
				opts = append(opts, api.WithMetrics(cfg.Metrics.Path, a.metrics.Handler()))
			}
			srv := api.NewServer(cfg.Server.Port, a.engine, a.store, logger, opts...)
			if err := srv.Start(); err != nil {
				return err
			}

			if cfg.Schedule.Enabled {
				sched := schedule.New(a.engine, cfg.Schedule.Interval, cfg.Schedule.Distributors, logger)
				go sched.Run(ctx)
			}

			<-ctx.Done()
			logger.Info("received signal, shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

// distributorsCmd lists configured distributors.
func distributorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distributors",
		Short: "List configured distributors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry := extractor.DefaultRegistry(setupLogger(cfg.Logging))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENABLED\tFETCHER\tVAT\tPROFILE\tBASE URL")
			for _, d := range cfg.Distributors {
				profile := "generic"
				if _, ok := registry.Get(d.Name); ok {
					profile = "built-in"
				}
				fmt.Fprintf(w, "%s\t%v\t%s\t%.2f\t%s\t%s\n", d.Name, d.Enabled, d.Fetcher, cfg.VATRateFor(d.Name), profile, d.BaseURL)
			}
			return w.Flush()
		},
	}
}

// logsCmd shows recent run logs.
func logsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent run logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, setupLogger(cfg.Logging))
			if err != nil {
				return err
			}
			defer a.Close()

			logs, err := a.store.RecentRunLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Println("No run logs.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tDISTRIBUTOR\tSTATUS\tFOUND\tNEW\tUPDATED\tDURATION\tERROR")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					l.StartedAt.Format(time.RFC3339), l.Distributor, l.Status,
					l.ProductsFound, l.ProductsNew, l.ProductsUpdated,
					l.Duration.Round(time.Millisecond), l.ErrorMessage)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of logs to show")
	return cmd
}

// historyCmd shows one product's change history.
func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <distributor> <sku>",
		Short: "Show the price and stock history of a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, setupLogger(cfg.Logging))
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ProductHistory(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no history for %s %s", args[0], args[1])
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RECORDED\tPRICE INC VAT\tPRICE EX VAT\tSTOCK\tQTY")
			for _, h := range entries {
				inc, ex, qty := "-", "-", "-"
				if h.PriceIncVAT.Valid {
					inc = h.PriceIncVAT.Decimal.StringFixed(2)
				}
				if h.PriceExVAT.Valid {
					ex = h.PriceExVAT.Decimal.StringFixed(2)
				}
				if h.StockQuantity != nil {
					qty = fmt.Sprint(*h.StockQuantity)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.RecordedAt.Format(time.RFC3339), inc, ex, h.StockStatus, qty)
			}
			return w.Flush()
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Delay Window:      %s - %s\n", cfg.Fetcher.MinDelay, cfg.Fetcher.MaxDelay)
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Max Attempts:      %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("  Backoff Base:      %s\n", cfg.Fetcher.BackoffBase)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("\nNormalize:\n")
			fmt.Printf("  VAT Rate:          %.2f\n", cfg.Normalize.VATRate)
			fmt.Printf("\nDistributors:\n")
			for _, d := range cfg.Distributors {
				fmt.Printf("  %-16s %s (%s, enabled=%v)\n", d.Name, d.BaseURL, d.Fetcher, d.Enabled)
			}
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("\nSchedule:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Schedule.Enabled)
			fmt.Printf("  Interval:          %s\n", cfg.Schedule.Interval)
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("  Metrics:           %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Path)
			fmt.Printf("\nLogging:\n")
			fmt.Printf("  Level:             %s (%s)\n", cfg.Logging.Level, strings.ToLower(cfg.Logging.Format))
			return nil
		},
	}
}

// versionCmd prints the version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("StockGoat %s\n", config.Version)
		},
	}
}
