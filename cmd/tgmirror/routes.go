package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/channel/adapters/discord"
	"github.com/memohai/tgmirror/internal/channel/route"
	"github.com/memohai/tgmirror/internal/config"
)

func routesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the channel routes",
	}
	cmd.AddCommand(routesValidateCmd())
	cmd.AddCommand(routesListCmd())
	return cmd
}

func loadRoutes(ctx context.Context, cfg config.Config) ([]channel.ChannelRoute, error) {
	return provideRouteSource(cfg).Load(ctx)
}

func routesValidateCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every route, optionally asking Discord about each webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			routes, err := loadRoutes(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := route.Validate(routes); err != nil {
				fmt.Fprintf(out, "FAIL  %v\n", err)
				return fmt.Errorf("routes are invalid")
			}
			fmt.Fprintf(out, "OK    %d channel(s)\n", len(routes))
			if !remote {
				return nil
			}
			sender, err := discord.NewSender(slog.New(slog.NewTextHandler(io.Discard, nil)), discord.Config{
				RequestTimeout: cfg.Discord.Timeout(),
			})
			if err != nil {
				return err
			}
			failed := checkWebhooks(cmd.Context(), out, sender, routes)
			if failed > 0 {
				return fmt.Errorf("%d webhook(s) failed validation", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch each webhook from Discord")
	return cmd
}

// webhookValidator is satisfied by *discord.Sender.
type webhookValidator interface {
	Validate(ctx context.Context, endpoint channel.DestinationEndpoint) (string, error)
}

func checkWebhooks(ctx context.Context, out io.Writer, v webhookValidator, routes []channel.ChannelRoute) int {
	failed := 0
	for _, r := range routes {
		for _, ep := range r.Endpoints {
			checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			name, err := v.Validate(checkCtx, ep)
			cancel()
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL  %s -> %s: %v\n", r.ChannelID, ep.Redacted(), err)
				continue
			}
			fmt.Fprintf(out, "OK    %s -> %s (%s)\n", r.ChannelID, ep.Redacted(), name)
		}
	}
	return failed
}

func routesListCmd() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the routes as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			routes, err := loadRoutes(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if !showSecrets {
				routes = redactRoutes(routes)
			}
			raw, err := route.Encode(routes)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print webhook tokens unmasked")
	return cmd
}

func redactRoutes(routes []channel.ChannelRoute) []channel.ChannelRoute {
	out := make([]channel.ChannelRoute, 0, len(routes))
	for _, r := range routes {
		eps := make([]channel.DestinationEndpoint, 0, len(r.Endpoints))
		for _, ep := range r.Endpoints {
			ep.URL = ep.Redacted()
			eps = append(eps, ep)
		}
		out = append(out, channel.ChannelRoute{ChannelID: r.ChannelID, Endpoints: eps})
	}
	return out
}
