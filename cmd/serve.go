package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"modelgate/internal/server"
)

const serveLongDesc = `Start the HTTP gateway.

Endpoints:
  POST /chat                  Chat completion
  POST /v1/chat/completions   Alias of /chat
  GET  /health                Engine session state
  GET  /metrics               Prometheus metrics

Every setting can also come from the environment, e.g.
MODELGATE_ENGINE_ADDRESS or MODELGATE_SERVER_PORT.`

type serveCommander struct {
	flags *globalFlags
	v     *viper.Viper

	port            int
	engineAddress   string
	engineTransport string
}

func newServeCmd(flags *globalFlags, v *viper.Viper) *cobra.Command {
	cmder := &serveCommander{flags: flags, v: v}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Bound here rather than at construction: several commands share
			// the viper keys and only the running one may own them.
			bindFlag(v, "server.port", cmd.Flags().Lookup("port"))
			bindFlag(v, "engine.address", cmd.Flags().Lookup("engine-address"))
			bindFlag(v, "engine.transport", cmd.Flags().Lookup("engine-transport"))
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.port, "port", "p", 0, "Override server port from configuration")
	cmd.Flags().StringVar(&cmder.engineAddress, "engine-address", "", "Inference engine address")
	cmd.Flags().StringVar(&cmder.engineTransport, "engine-transport", "", "Inference engine transport (http, grpc)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
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
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to release resources", "error", err)
		}
	}()

	srv, err := server.New(cfg.Server, a.gateway, a.session, a.metrics, log.With("component", "http"))
	if err != nil {
		return err
	}

	log.Info("modelgate starting",
		"version", Version,
		"port", cfg.Server.Port,
		"model", cfg.Model.Name,
		"engine_transport", cfg.Engine.Transport,
		"engine_address", cfg.Engine.Address,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.Engine.Eager {
		// A failed load is reported through /health; the server keeps running.
		g.Go(func() error {
			if err := a.session.Start(gctx); err != nil && gctx.Err() == nil {
				log.Error("eager engine start failed", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
