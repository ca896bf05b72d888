package options

import (
	"fmt"

	"github.com/elastic-io/mediagate/internal/config"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/utils"
	"github.com/urfave/cli"
)

type Options struct {
	Journal     string
	JournalPath string
	Tmpdir      string
	BodySize    string
	StopSignal  string
	MemoryLimit string
	Insecure    bool
	Config      *config.Config
}

func New(ctx *cli.Context) *Options {
	opts := Options{}
	opts.Journal = ctx.GlobalString("journal")
	opts.JournalPath = ctx.GlobalString("journal-path")
	opts.Tmpdir = ctx.GlobalString("tmp")
	opts.BodySize = ctx.GlobalString("body")
	opts.StopSignal = ctx.GlobalString("stop-signal")
	opts.MemoryLimit = ctx.GlobalString("memory-limit")
	opts.Insecure = ctx.GlobalBool("insecure")

	opts.Config = config.New(ctx)
	if opts.BodySize != "" {
		size, err := utils.ParseSize(utils.SplitSize(opts.BodySize))
		if err != nil {
			log.Logger.Warnf("invalid body size %q, using default: %v", opts.BodySize, err)
		} else if size > 0 {
			opts.Config.BodyLimit = size
		}
	}
	return &opts
}

func (o *Options) Validate() error {
	if o.Tmpdir == "" {
		return fmt.Errorf("tmp directory is required")
	}
	if o.Journal == "" {
		log.Logger.Warn("journal is not set, uploads will not be recorded")
	} else if o.Journal != journal.None {
		if _, ok := journal.Backends[o.Journal]; !ok {
			return fmt.Errorf("journal backend %s not found", o.Journal)
		}
		if o.JournalPath == "" {
			return fmt.Errorf("journal path is required")
		}
	}
	if o.MemoryLimit != "" {
		if _, err := utils.ParseSize(utils.SplitSize(o.MemoryLimit)); err != nil {
			return fmt.Errorf("invalid memory limit: %w", err)
		}
	}
	if o.StopSignal != "" {
		if _, err := utils.ParseSignal(o.StopSignal); err != nil {
			return err
		}
	}
	return nil
}
