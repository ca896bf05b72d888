package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/elastic-io/mediagate/internal/config"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/transcode"
	"github.com/urfave/cli"
)

var transcodeCommand = cli.Command{
	Name:      "transcode",
	Usage:     "transcode a single local image the way uploads are transcoded",
	ArgsUsage: ``,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "in, i",
			Usage: "input image path",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "output path, the extension is replaced by the chosen format",
		},
		cli.StringFlag{
			Name:  "content-type",
			Usage: "declared content type of the input (sniffed when empty)",
		},
	},
	Action: func(ctx *cli.Context) error {
		if err := checkArgs(ctx, 0, exactArgs); err != nil {
			return err
		}
		in, out := ctx.String("in"), ctx.String("out")
		if in == "" || out == "" {
			return fmt.Errorf("both --in and --out are required")
		}

		path, format, err := transcodeFile(config.New(ctx).Transcode(), in, out, ctx.String("content-type"))
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", path, format)
		return nil
	},
}

// transcodeFile 写出的文件扩展名与实际格式一致
func transcodeFile(opts transcode.Options, in, out, contentType string) (string, string, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return "", "", fmt.Errorf("read input: %w", err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	t := transcode.NewTranscoder(opts, log.Named("transcode"))
	encoded, format, err := t.Transcode(data, contentType)
	if err != nil {
		return "", "", err
	}

	path := strings.TrimSuffix(out, filepath.Ext(out)) + "." + format
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", "", fmt.Errorf("write output: %w", err)
	}
	return path, format, nil
}
