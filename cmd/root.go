package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"modelgate/internal/config"
)

const rootLongDesc = `modelgate serves OpenAI-style chat completions from a single
inference engine.

Run the gateway:
  modelgate serve --config modelgate.yaml

Send one prompt through the same pipeline:
  modelgate chat "What is the capital of France?"`

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "modelgate",
		Short:         "Chat completion gateway for an inference engine",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatPretty, "Log format (pretty, json)")
	bindFlag(v, "log.format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(newServeCmd(flags, v))
	cmd.AddCommand(newChatCmd(flags, v))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
