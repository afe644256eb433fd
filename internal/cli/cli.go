package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/executor"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/telemetry"
	"github.com/spf13/cobra"
)

var configFile string

// finalizers run once after the command, whether it succeeded or not.
var finalizers []func()

// ExecutorFactory builds the executor used by the commands; replaced in tests.
var ExecutorFactory = func() (*executor.Executor, func(), error) {
	e, reporter, err := executor.NewFromConfig(device.HostSensors{})
	if err != nil {
		return nil, nil, err
	}
	return e, reporter.Wait, nil
}

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "offload",
		Short:         "Run tasks locally or on the compute service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.ReadConfiguration(configFile)
			node.LocalNode = node.NewIdentifier("device")
			metrics.Init()
			if gateway := config.GetString(config.METRICS_PUSHGATEWAY_URL, ""); metrics.Enabled && gateway != "" {
				finalizers = append(finalizers, func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := metrics.Push(ctx, gateway, "offload"); err != nil {
						log.Printf("Could not push metrics to %s: %v\n", gateway, err)
					}
				})
			}
			return setupTracing(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			finalize()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file name")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildDecideCommand())
	rootCmd.AddCommand(buildBenchCommand())
	rootCmd.AddCommand(buildPingCommand())
	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var flags taskFlags
	var out string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decide where to run a task and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, params, err := flags.build()
			if err != nil {
				return err
			}
			e, flush, err := ExecutorFactory()
			if err != nil {
				return err
			}
			defer flush()

			res, err := e.Execute(cmd.Context(), id, params, flags.hint())
			if err != nil {
				return err
			}
			if data, ok := res.Data.([]byte); ok && out != "" {
				if err := os.WriteFile(out, data, 0644); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), runReport(res))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "where to save the processed image")
	return cmd
}

func buildDecideCommand() *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Print the offloading decision without running the task",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, params, err := flags.build()
			if err != nil {
				return err
			}
			e, flush, err := ExecutorFactory()
			if err != nil {
				return err
			}
			defer flush()

			d, snap, err := e.Decide(cmd.Context(), id, params, flags.hint())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"task":     id,
				"policy":   e.Policy().Name(),
				"offload":  d.Offload,
				"reason":   d.Reason,
				"source":   d.Source,
				"snapshot": snap.String(),
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func buildBenchCommand() *cobra.Command {
	var flags taskFlags
	var repeat int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a task both locally and remotely and report the timings",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, params, err := flags.build()
			if err != nil {
				return err
			}
			e, flush, err := ExecutorFactory()
			if err != nil {
				return err
			}
			defer flush()

			for i := 0; i < repeat; i++ {
				b, err := e.Benchmark(cmd.Context(), id, params, flags.hint())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "number of runs")
	return cmd
}

func buildPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Measure the latency to the compute service",
		RunE: func(cmd *cobra.Command, args []string) error {
			computeURL, err := config.RequireString(config.COMPUTE_URL)
			if err != nil {
				return err
			}
			collector := device.NewCollector(nil, device.CollectorOptions{
				ComputeURL:   computeURL,
				ProbeTimeout: config.GetMillis(config.PROBE_TIMEOUT_MS, 2000),
				FetchStatus:  true,
			})
			snap := collector.Collect(cmd.Context(), device.NetworkHint{Connected: true, Type: "ethernet"})
			if !snap.LatencyMeasured {
				return fmt.Errorf("%s is unreachable", computeURL)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ms (cpu %s, memory %s)\n",
				computeURL, snap.LatencyMs, snap.ServerCPULoad, snap.ServerMemoryPercent)
			return nil
		},
	}
	return cmd
}

func runReport(res *executor.Result) map[string]interface{} {
	report := map[string]interface{}{
		"request_id": res.RequestID,
		"task":       res.Task,
		"ran_on":     res.RanOn,
		"elapsed_ms": res.ElapsedMs,
		"reason":     res.Reason,
	}
	switch data := res.Data.(type) {
	case []byte:
		report["output_bytes"] = len(data)
	default:
		report["result"] = data
	}
	if res.Server != nil {
		report["server"] = res.Server
	}
	return report
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupTracing(ctx context.Context) error {
	if !config.GetBool(config.TRACING_ENABLED, false) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	outfile := config.GetString(config.TRACING_OUTFILE, "")
	if len(outfile) < 1 {
		outfile = fmt.Sprintf("traces-%s.json", time.Now().Format("20060102-150405"))
	}
	shutdown, err := telemetry.SetupOTelSDK(ctx, outfile)
	if err != nil {
		return err
	}
	finalizers = append(finalizers, func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Could not flush traces: %v\n", err)
		}
		telemetry.DefaultTracer = nil
	})
	return nil
}

// finalize pushes metrics and flushes traces.
func finalize() {
	for _, fn := range finalizers {
		fn()
	}
	finalizers = nil
}

// Execute runs the CLI until completion or until ctx is cancelled.
func Execute(ctx context.Context) error {
	err := BuildCLI().ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails
	finalize()
	return err
}
