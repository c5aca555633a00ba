package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "embed"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/shipbatch/pkg/batch/app"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
// This file is used to load configuration at application startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main is the entry point of the application.
// It manages startup, signal handling, and execution of the Fx container.
func main() {
	var opts app.RunOptions
	flag.StringVar(&opts.SourcePath, "source", "", "path of the shipment source file (CSV)")
	flag.StringVar(&opts.TemplatePath, "template", "", "path of the JSON mapping template")
	flag.StringVar(&opts.JobName, "name", "", "job name (defaults to the source file path)")
	flag.StringVar(&opts.Command, "command", "", "original command this batch was created from")
	flag.StringVar(&opts.Mode, "mode", "", "execution mode override: confirm or auto")
	flag.StringVar(&opts.RecoveryChoice, "recover", "", "apply this choice to interrupted jobs: resume, restart or cancel")
	flag.Parse()

	if opts.SourcePath == "" || opts.TemplatePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful interruption (Ctrl+C). Cancellation
	// pauses the running batch so it can be resumed.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Pausing the batch...", sig)
		cancel()
	}()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, opts)
	os.Exit(0)
}
