package main

import (
	"fmt"
	"os"
	"time"

	"github.com/loykin/drivr/pkg/client"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(loadManager)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command. open builds the manager for the commands that
// need one; tests pass their own.
func buildRoot(open managerFunc) *cobra.Command {
	globalFlags := &GlobalFlags{}
	c := command{open: open, flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(c),
		createStopCommand(c),
		createStatusCommand(c),
		createSessionCommand(c),
		createOpenCommand(c),
		createTextCommand(c),
		createShutdownCommand(c),
		createServeCommand(c),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "drivr",
		Short: "Shared chromedriver and browser session helper",
		Long: `drivr keeps one chromedriver and one browser session alive for every
process that shares its state directory.

Configuration comes from an optional TOML file and CHROMEDRIVER_* variables.

Examples:
  drivr start                          # launch or reuse the driver
  drivr open https://example.com       # attach to the session and navigate
  drivr text "//h1"                    # print the text of the first match
  drivr session clear                  # forget the recorded session
  drivr serve --listen 127.0.0.1:9516  # HTTP control API and /metrics`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createStartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the driver, or reuse the one already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m manager) error { return cmdStart(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the recorded driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m manager) error { return cmdStop(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
}

func createStatusCommand(c command) *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded driver and session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.APIUrl != "" {
				api := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
				return statusViaAPI(cmd.Context(), api, cmd.OutOrStdout())
			}
			return c.withManager(func(m manager) error { return cmdStatus(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "ask a running 'drivr serve' instead of reading the state dir")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "timeout for the API request")
	return cmd
}

func createSessionCommand(c command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or forget the recorded browser session",
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the recorded session id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m manager) error { return cmdSessionShow(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the recorded session; the next client opens a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m manager) error { return cmdSessionClear(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}

func createOpenCommand(c command) *cobra.Command {
	f := &OpenFlags{}
	cmd := &cobra.Command{
		Use:   "open <url>",
		Short: "Attach to the shared session and load url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.URL = args[0]
			return c.withManager(func(m manager) error { return cmdOpen(cmd.Context(), m, *f, cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().BoolVar(&f.Refresh, "refresh", false, "reload even when url is already the current page")
	return cmd
}

func createTextCommand(c command) *cobra.Command {
	f := &TextFlags{}
	cmd := &cobra.Command{
		Use:   "text <xpath>",
		Short: "Print the text (or an attribute) of the first element matching xpath",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.XPath = args[0]
			return c.withManager(func(m manager) error { return cmdText(cmd.Context(), m, *f, cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().StringVar(&f.URL, "url", "", "visit url first and return to the current page afterwards")
	cmd.Flags().StringVar(&f.Attribute, "attr", "", "print this attribute instead of the text")
	return cmd
}

func createShutdownCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "End the shared session and stop the driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m manager) error { return cmdShutdown(cmd.Context(), m, cmd.OutOrStdout()) })
		},
	}
}

func createServeCommand(c command) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Long: `Serve the driver control API and /metrics.

Examples:
  drivr serve                           # listen on [server].listen
  drivr serve --listen 127.0.0.1:9600   # override the address
  drivr serve --daemonize --pidfile /run/drivr.pid --logfile /var/log/drivr.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.Daemonize {
				return daemonize(f.PidFile, f.LogFile)
			}
			return c.withManager(func(m manager) error { return runServe(m, *f, cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "address for the control API (default [server].listen)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "", "path prefix for the control API (default [server].base_path)")
	cmd.Flags().StringVar(&f.MetricsListen, "metrics-listen", "", "also expose /metrics on a separate address")
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&f.PidFile, "pidfile", "", "write the daemon pid to this file")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output to this file")
	cmd.Flags().BoolVar(&f.NonBlocking, "non-blocking", false, "return once the server is listening")
	_ = cmd.Flags().MarkHidden("non-blocking")
	return cmd
}
