package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cuemby/addonkit/pkg/manager"
	"github.com/cuemby/addonkit/pkg/metrics"
	"github.com/cuemby/addonkit/pkg/serial"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the runtime and apply channels",
	Long: `Start the runtime, run every service (attaching declared hooks), apply
the channels given with --emit and shut down.

With --metrics-addr the runtime stays up, serving /metrics, /health and
/ready until interrupted.

Examples:
  # Apply a channel with a JSON payload
  addonkit run -c addonkit.yaml --emit 'page.view={"kind":"article"}'

  # Print the profiling report afterwards
  addonkit run -c addonkit.yaml --emit counter=1 --report

  # Serve metrics until Ctrl-C
  addonkit run -c addonkit.yaml --metrics-addr :9090`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArray("emit", nil, "Apply channel=payload (payload parsed as JSON when valid)")
	runCmd.Flags().Bool("report", false, "Print the profiling report before exiting")
	runCmd.Flags().String("metrics-addr", "", "Serve metrics and health on this address until interrupted")
}

func runRun(cmd *cobra.Command, args []string) error {
	emits, _ := cmd.Flags().GetStringArray("emit")
	report, _ := cmd.Flags().GetBool("report")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Shutdown(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if report {
			printReport(cmd, m)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	out := cmd.OutOrStdout()
	for _, emit := range emits {
		channel, raw, ok := strings.Cut(emit, "=")
		if !ok || channel == "" {
			return fmt.Errorf("invalid --emit %q: expected channel=payload", emit)
		}
		result := m.Apply(ctx, channel, serial.Unserialize(raw))
		encoded, err := serial.Serialize(result)
		if err != nil {
			encoded = fmt.Sprintf("%v", result)
		}
		fmt.Fprintf(out, "%s: %s\n", channel, encoded)
	}

	if metricsAddr == "" {
		return nil
	}
	return serve(ctx, cmd, m, metricsAddr)
}

func serve(ctx context.Context, cmd *cobra.Command, m *manager.Manager, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", m.Health().HealthHandler())
	mux.HandleFunc("/ready", m.Health().ReadyHandler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving metrics on %s\n", addr)

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func printReport(cmd *cobra.Command, m *manager.Manager) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "GROUP\tSPAN\tELAPSED\tMEMORY\tSTATE")
	for _, g := range m.Profiler().Report() {
		for _, s := range g.Spans {
			state := "open"
			switch {
			case s.Locked:
				state = "locked"
			case s.Ended:
				state = "ended"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%dB\t%s\n", g.Name, s.Name, s.Elapsed, s.MemoryUsed, state)
		}
	}
}
