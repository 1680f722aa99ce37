package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/showtimes/internal/config"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves GET /movies over HTTP",
		Long: `Starts the HTTP API. GET /movies?near=<location>&date=<days>&militaryTime=<bool>
returns the theatres and showtimes for the location, crawling on a cache miss.
The server shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startApp(cmd, func(cfg *config.Config) {
				if addr != "" {
					cfg.Server.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Run(cmd.Context()); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
