package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// gracefulStop cancels the returned context on ^C or SIGTERM, which ends the
// SQS poll loop.
func gracefulStop(parent context.Context) (context.Context, context.CancelFunc) {

	ctx, cancel := context.WithCancel(parent)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-stop:
			logger.Infof("Caught signal: %+v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()

	return ctx, cancel
}
