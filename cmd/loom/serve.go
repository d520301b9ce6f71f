package main

import (
	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP observability server",
	Long: `Serve exposes read-only artifact views, thin mutation pass-throughs,
and a Server-Sent-Events tail of the journal and decision ledger at
/api/events.`,
	Run: func(_ *cobra.Command, _ []string) {
		if serveAddr != "" {
			cfg.ServeAddr = serveAddr
		}
		if err := server.New(cfg).ListenAndServe(); err != nil {
			exitRejected("%v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8700, or SDLC_SERVE_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
