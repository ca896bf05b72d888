package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/options"
	"github.com/elastic-io/mediagate/internal/utils"
	"github.com/urfave/cli"
)

const stopTimeout = 10 * time.Second

type App interface {
	Run() error
	Stop() error
}

type Program func(opts *options.Options) (App, error)

// Main 构建并运行 program，收到退出信号或 Run 返回后调用 Stop
func Main(ctx *cli.Context, program Program, name string) error {
	opts := options.New(ctx)

	app, err := program(opts)
	if err != nil {
		return err
	}

	signals := []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
	if opts.StopSignal != "" {
		if sig, err := utils.ParseSignal(opts.StopSignal); err == nil {
			signals = append(signals, sig)
		}
	}
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, signals...)
	defer signal.Stop(signalCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run()
		close(errCh)
	}()

	log.Logger.Infof("%s startup successfully", name)

	select {
	case receivedSignal := <-signalCh:
		log.Logger.Debug("Received signal: ", receivedSignal, ", initiating graceful shutdown...")
	case err = <-errCh:
		if err != nil {
			log.Logger.Debug("Application error: ", err.Error(), ", shutting down...")
		} else {
			log.Logger.Debug("Application completed successfully, shutting down...")
		}
	}

	log.Logger.Infof("Stopping %s...", name)
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	stopErrCh := make(chan error, 1)
	go func() {
		stopErrCh <- app.Stop()
		close(stopErrCh)
	}()

	select {
	case stopErr := <-stopErrCh:
		if stopErr != nil {
			log.Logger.Debug("Error during shutdown: ", stopErr)
			if err == nil {
				err = stopErr
			}
		}
	case <-stopCtx.Done():
		log.Logger.Debug("Shutdown timed out")
		if err == nil {
			err = fmt.Errorf("stop %s: %w", name, stopCtx.Err())
		}
	}
	log.Logger.Debugf("%s shutdown complete", name)
	return err
}
