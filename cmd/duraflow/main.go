// Command duraflow runs durable workflows from the command line and
// serves them over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/duraflow-go/flow"
	"github.com/dshills/duraflow-go/flow/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "duraflow",
		Short:         "Durable workflow engine",
		Long:          "duraflow runs workflows as durable, replayable executions.\nEvery task result is journaled, so a crashed or paused run resumes\nexactly where it left off.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(newExecCmd(&configPath))
	rootCmd.AddCommand(newStartCmd(&configPath))
	rootCmd.AddCommand(newInspectCmd(&configPath))
	rootCmd.AddCommand(newListCmd(&configPath))
	return rootCmd
}

func newExecCmd(configPath *string) *cobra.Command {
	var executionID string
	var forceReplay bool

	cmd := &cobra.Command{
		Use:   "exec <workflow> [input-json]",
		Short: "Run a workflow to completion (or pause)",
		Long:  "Runs the named workflow with the given JSON input and prints the\nexecution summary. Pass --execution-id to resume a paused run;\nthe input, when given, replaces the stored workflow input.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.close()

			var input any
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("input is not valid JSON: %s", args[1])
				}
				input = json.RawMessage(args[1])
			}

			var opts []flow.RunOption
			if executionID != "" {
				opts = append(opts, flow.WithExecutionID(executionID))
			}
			if forceReplay {
				opts = append(opts, flow.WithForceReplay())
			}

			ec, err := app.engine.Execute(cmd.Context(), args[0], input, opts...)
			if err != nil {
				return err
			}
			return printJSON(ec.Summarize())
		},
	}
	cmd.Flags().StringVar(&executionID, "execution-id", "", "resume or replay an existing execution")
	cmd.Flags().BoolVar(&forceReplay, "force-replay", false, "re-drive a finished execution from its event log")
	return cmd
}

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Serve workflows over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.close()

			srv := server.New(app.engine, app.logger,
				server.WithAuthToken(app.cfg.Server.AuthToken),
				server.WithMetricsGatherer(app.registry),
				server.WithCatalogNames(app.catalog),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.Port)
			app.logger.Info("starting server", zap.String("addr", addr))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(addr) }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				app.logger.Info("shutting down")
				return nil
			}
		},
	}
}

func newInspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <execution-id>",
		Short: "Print the full event log of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.close()

			ec, err := app.engine.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(ec)
		},
	}
}

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.close()

			for _, name := range app.catalog.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
