package cli

import (
	"log/slog"
	"os"

	"github.com/me/comfyflow/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking COMFYFLOW_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("COMFYFLOW_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the comfyflow CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "comfyflow",
		Short: "comfyflow — turn ComfyUI workflows into runnable apps",
		Long:  "comfyflow uploads ComfyUI workflow exports, exposes their parameters, and dispatches runs.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.FromConfig(flagLogLevel, flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "comfyflow server URL (or COMFYFLOW_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newUploadCmd(),
		newListCmd(),
		newInspectCmd(),
		newRunCmd(),
	)

	return root
}
