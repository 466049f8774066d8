package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"modelgate/internal/models"
)

type chatCommander struct {
	flags *globalFlags
	v     *viper.Viper

	maxTokens     int
	temperature   float64
	system        string
	engineAddress string
}

func newChatCmd(flags *globalFlags, v *viper.Viper) *cobra.Command {
	cmder := &chatCommander{flags: flags, v: v}

	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Run one prompt through the pipeline and print the completion",
		Long: `Load the engine, send a single user message through the same pipeline
the HTTP gateway uses, and print the completion text followed by usage.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlag(v, "engine.address", cmd.Flags().Lookup("engine-address"))
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate (default 512)")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature (default 0.7)")
	cmd.Flags().StringVar(&cmder.system, "system", "", "Optional system message")
	cmd.Flags().StringVar(&cmder.engineAddress, "engine-address", "", "Inference engine address")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, text string) error {
	cfg, err := loadConfig(c.flags, c.v)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	req := models.ChatRequest{}
	if c.system != "" {
		req.Messages = append(req.Messages, models.Message{Role: models.RoleSystem, Content: c.system})
	}
	req.Messages = append(req.Messages, models.Message{Role: models.RoleUser, Content: text})
	if cmd.Flags().Changed("max-tokens") {
		req.MaxTokens = &c.maxTokens
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &c.temperature
	}

	return c.complete(cmd.Context(), cmd.OutOrStdout(), a, req)
}

func (c *chatCommander) complete(ctx context.Context, out io.Writer, a *app, req models.ChatRequest) error {
	completion, err := a.gateway.Complete(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, completion.Text)
	fmt.Fprintf(out, "\nfinish_reason=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d\n",
		completion.FinishReason,
		completion.Usage.PromptTokens,
		completion.Usage.CompletionTokens,
		completion.Usage.TotalTokens,
	)
	return nil
}
