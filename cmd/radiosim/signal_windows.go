package main

import (
	"context"
	"os"
	"os/signal"
)

func withSigHandler(ctx context.Context, cancel context.CancelFunc) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx
}
