package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server controls webhook mode. Without --serve the program handles the
// single event of the current workflow run and exits.
type Server struct {
	Serve           bool
	Addr            string
	ShutdownTimeout time.Duration
}

func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "serve",
			Usage:       "Receive GitHub webhooks instead of running once",
			Destination: &c.Serve,
			Sources:     cli.EnvVars("HERDER_SERVE"),
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for --serve",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("HERDER_ADDR"),
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "Time given to the HTTP server to close connections on shutdown",
			Value:       10 * time.Second,
			Destination: &c.ShutdownTimeout,
			Sources:     cli.EnvVars("HERDER_SHUTDOWN_TIMEOUT"),
		},
	}
}
