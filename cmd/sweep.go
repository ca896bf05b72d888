package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic-io/mediagate/app"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/options"
	"github.com/elastic-io/mediagate/internal/service"
	"github.com/urfave/cli"
)

var sweepCommand = cli.Command{
	Name:      "sweep",
	Usage:     "delete objects left behind by failed uploads",
	ArgsUsage: ``,
	Description: `Objects stored before a request failed are not rolled back. They are
recorded in the upload journal as failed and removed here.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "dry-run",
			Usage: "only list orphaned objects",
		},
		cli.DurationFlag{
			Name:  "pending-age",
			Value: 0,
			Usage: "also sweep pending records older than this (0 disables)",
		},
	},
	Action: func(ctx *cli.Context) error {
		if err := checkArgs(ctx, 0, exactArgs); err != nil {
			return err
		}
		sweepOpts := service.SweepOptions{
			DryRun:     ctx.Bool("dry-run"),
			PendingAge: ctx.Duration("pending-age"),
		}
		return app.Main(ctx, func(opts *options.Options) (app.App, error) {
			return NewSweep(opts, sweepOpts)
		}, "MediagateSweep")
	},
}

type Sweep struct {
	opts    service.SweepOptions
	journal journal.Journal
	sweeper *service.Sweeper
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewSweep(opts *options.Options, sweepOpts service.SweepOptions) (app.App, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.Journal == "" || opts.Journal == journal.None {
		return nil, fmt.Errorf("sweep requires an upload journal")
	}

	comps, err := app.Build(opts)
	if err != nil {
		return nil, err
	}

	s := &Sweep{
		opts:    sweepOpts,
		journal: comps.Journal,
		sweeper: service.NewSweeper(comps.Store, comps.Journal, log.Named("sweep")),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func (s *Sweep) Run() error {
	start := time.Now()
	report, err := s.sweeper.Sweep(s.ctx, s.opts)
	if report != nil {
		for _, key := range report.Keys {
			fmt.Println(key)
		}
		log.Logger.Infof("sweep found %d orphaned objects, deleted %d in %s",
			report.Found, report.Deleted, time.Since(start))
	}
	return err
}

func (s *Sweep) Stop() error {
	s.cancel()
	return s.journal.Close()
}
