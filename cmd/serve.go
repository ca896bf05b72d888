package cmd

import (
	"fmt"

	"github.com/elastic-io/mediagate/app"
	"github.com/urfave/cli"
)

var serveCommand = cli.Command{
	Name:        "serve",
	Usage:       "run the upload server",
	ArgsUsage:   ``,
	Description: `Accepts multipart uploads, transcodes image parts and stores them in the object store.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:   "endpoint, e",
			Value:  "localhost:3000",
			Usage:  "server listen address",
			EnvVar: "MEDIAGATE_ENDPOINT",
		},
		cli.StringFlag{
			Name:   "cert, c",
			Value:  "",
			Usage:  "TLS certificate file path",
			EnvVar: "MEDIAGATE_CERT_FILE",
		},
		cli.StringFlag{
			Name:   "key, k",
			Value:  "",
			Usage:  "TLS private key file path",
			EnvVar: "MEDIAGATE_KEY_FILE",
		},
		cli.StringSliceFlag{
			Name:  "mod",
			Value: &cli.StringSlice{"upload"},
			Usage: "set the module to load",
		},
		cli.IntFlag{
			Name:  "read-timeout, rt",
			Value: 120,
			Usage: "Read timeout for HTTP requests in seconds",
		},
		cli.IntFlag{
			Name:  "write-timeout, wt",
			Value: 120,
			Usage: "Write timeout for HTTP requests in seconds",
		},
		cli.IntFlag{
			Name:  "idle-timeout, it",
			Value: 300,
			Usage: "Idle timeout for keep-alive connections in seconds",
		},
	},
	Action: func(ctx *cli.Context) error {
		if err := checkArgs(ctx, 0, exactArgs); err != nil {
			return fmt.Errorf("%s, serve takes no arguments", err)
		}
		return app.Main(ctx, app.NewServer, "MediagateServer")
	},
}
