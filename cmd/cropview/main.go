package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cropview"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("cropview"),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(); err != nil {
		return err
	}

	return nil
}

type cliArgs struct {
	Crop  cropCmd  `cmd:"" help:"Execute crop operations from a JSONL file"`
	Serve serveCmd `cmd:"" help:"Start the crop editor API server"`
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

type cropCmd struct {
	OpsFile   string `arg:"" help:"JSONL file with one crop operation per line"`
	BaseDir   string `help:"Directory source filenames are resolved against" default:"."`
	OutputDir string `help:"Directory cropped images are written to" default:"output"`
	Verbose   bool   `help:"Enable verbose logging" default:"false"`
}

func (cmd *cropCmd) Run() error {
	setupLogging(cmd.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	ops, err := readOperations(cmd.OpsFile)
	if err != nil {
		return err
	}

	executor := cropview.BatchExecutor{
		BaseDir:   cmd.BaseDir,
		OutputDir: cmd.OutputDir,
		Pipeline:  cropview.NewImagingPipeline(),
	}
	return executor.Exec(ctx, ops)
}

func readOperations(path string) (cropview.Operations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open operations file: %w", err)
	}
	defer f.Close()

	var ops cropview.Operations
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op cropview.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("failed to parse operation %q: %w", line, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operations file: %w", err)
	}
	return ops, nil
}

type serveCmd struct {
	Addr    string `help:"Address to listen on (port 0 picks a free port)" default:"localhost:0"`
	Verbose bool   `help:"Enable verbose logging" default:"false"`
}

func (cmd *serveCmd) Run() error {
	setupLogging(cmd.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	app := NewWebApp(Config{
		Addr: cmd.Addr,
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
		},
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down crop editor server...")
		},
	})

	return app.Run(ctx)
}
