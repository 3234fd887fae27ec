// synde-mockd is a standalone mock backend for local development and demos.
// It speaks the same REST and SSE protocol as the hosted synde service but
// runs scripted workflows in memory, with no GPU cluster behind it.
//
// Run with: go run ./cmd/synde-mockd
// Then point the client at it: synde --server http://localhost:8642 chat
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/server"
)

func main() {
	addr := flag.String("addr", server.DefaultAddr, "listen address")
	authToken := flag.String("auth-token", "", "require this bearer token on /api routes")
	stepDelay := flag.Duration("step-delay", server.DefaultStepDelay, "delay between scripted workflow steps")
	heartbeat := flag.Duration("heartbeat", server.DefaultHeartbeatInterval, "stream heartbeat interval")
	maxStream := flag.Duration("max-stream", server.DefaultMaxStreamDuration, "stream age limit before a timeout event")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := logging.New()
	logger.SetLevel(logging.LevelInfo)
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	srv, err := server.NewServer(&server.Config{
		Addr:              *addr,
		AuthToken:         *authToken,
		StepDelay:         *stepDelay,
		HeartbeatInterval: *heartbeat,
		MaxStreamDuration: *maxStream,
		Logger:            logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := <-errCh; err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case err := <-errCh:
		// Start only returns on its own when it could not serve.
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}
