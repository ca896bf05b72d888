package cmd

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	_ "github.com/elastic-io/mediagate/internal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/utils"
	"github.com/urfave/cli"
)

func Execute(name, usage, version, commit string) {
	app := cli.NewApp()
	app.Name = name
	app.Usage = usage

	v := []string{version}

	if commit != "" {
		v = append(v, "commit: "+commit)
	}
	v = append(v, "go: "+runtime.Version())
	app.Version = strings.Join(v, "\n")

	app.Flags = globalFlags()

	app.Commands = []cli.Command{
		serveCommand,
		sweepCommand,
		transcodeCommand,
	}

	app.Before = func(ctx *cli.Context) error {
		if err := log.Init(ctx.String("log"), ctx.String("log-level")); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
			return err
		}

		debug.SetGCPercent(ctx.Int("gc-percent"))
		if limit := ctx.String("memory-limit"); limit != "" {
			size, err := utils.ParseSize(utils.SplitSize(limit))
			if err != nil {
				return fmt.Errorf("invalid memory-limit: %w", err)
			}
			debug.SetMemoryLimit(int64(size))
		}
		return nil
	}

	app.After = func(ctx *cli.Context) error {
		log.Close()
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "set the log file to write mediagate logs to (default is '/dev/stderr')",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "set the log level ('debug', 'info', 'warn', 'error', 'fatal')",
		},
		cli.StringFlag{
			Name:   "s3-endpoint",
			Usage:  "S3 compatible object store endpoint",
			EnvVar: "S3_ENDPOINT",
		},
		cli.StringFlag{
			Name:   "s3-access-key",
			Usage:  "object store access key",
			EnvVar: "S3_ACCESS_KEY",
		},
		cli.StringFlag{
			Name:   "s3-secret-key",
			Usage:  "object store secret key",
			EnvVar: "S3_SECRET_KEY",
		},
		cli.StringFlag{
			Name:   "s3-token",
			Usage:  "object store session token",
			EnvVar: "S3_TOKEN",
		},
		cli.StringFlag{
			Name:   "s3-region",
			Value:  "us-east-1",
			Usage:  "object store region",
			EnvVar: "S3_REGION",
		},
		cli.StringFlag{
			Name:   "s3-bucket",
			Usage:  "bucket uploads are written to",
			EnvVar: "S3_BUCKET",
		},
		cli.StringFlag{
			Name:   "s3-public-url",
			Usage:  "public base URL objects are served from",
			EnvVar: "S3_PUBLIC_URL",
		},
		cli.BoolFlag{
			Name:  "insecure",
			Usage: "skip TLS verification when talking to the object store",
		},
		cli.StringFlag{
			Name:   "journal",
			Value:  "bolt",
			Usage:  "upload journal backend (bolt, badger or none)",
			EnvVar: "MEDIAGATE_JOURNAL",
		},
		cli.StringFlag{
			Name:   "journal-path",
			Value:  "data/journal.db",
			Usage:  "upload journal location, a file for bolt and a directory for badger",
			EnvVar: "MEDIAGATE_JOURNAL_PATH",
		},
		cli.StringFlag{
			Name:  "tmp",
			Value: "temp",
			Usage: "directory for transient upload files",
		},
		cli.StringFlag{
			Name:  "body",
			Value: "64M",
			Usage: "set the request body size limit",
		},
		cli.StringFlag{
			Name:  "min-image-size",
			Value: "5K",
			Usage: "smallest accepted image part when size limits are enforced",
		},
		cli.StringFlag{
			Name:  "max-image-size",
			Value: "5M",
			Usage: "largest accepted image part when size limits are enforced",
		},
		cli.BoolFlag{
			Name:   "enforce-size-limits",
			Usage:  "reject image parts outside the min/max image size",
			EnvVar: "MEDIAGATE_ENFORCE_SIZE_LIMITS",
		},
		cli.StringFlag{
			Name:   "failure-policy",
			Value:  "abort",
			Usage:  "what to do when an image part fails: abort or skip",
			EnvVar: "MEDIAGATE_FAILURE_POLICY",
		},
		cli.IntFlag{
			Name:  "max-width",
			Value: 1920,
			Usage: "bounding box width for transcoded images",
		},
		cli.IntFlag{
			Name:  "max-height",
			Value: 1920,
			Usage: "bounding box height for transcoded images",
		},
		cli.IntFlag{
			Name:  "png-quality",
			Value: 90,
			Usage: "palette quality for transparent png output",
		},
		cli.IntFlag{
			Name:  "webp-quality",
			Value: 92,
			Usage: "lossy webp quality",
		},
		cli.StringFlag{
			Name:  "stop-signal",
			Value: "",
			Usage: "extra signal that triggers a graceful shutdown",
		},
		cli.IntFlag{
			Name:  "gc-percent",
			Value: 50,
			Usage: "set the garbage collection percent",
		},
		cli.StringFlag{
			Name:  "memory-limit",
			Value: "2G",
			Usage: "set the memory limit",
		},
	}
}
