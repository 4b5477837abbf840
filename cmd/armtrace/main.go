package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PickNikRobotics/armtrace"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "record":
		err = recordCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("armtrace %s: %v", cmd, err)
	}
}

func recordCommand(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to recorder configuration file")
	file := fs.String("file", "", "Output CSV file for the session")
	duration := fs.Duration("duration", 0, "Recording duration; 0 records until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	cfg, err := armtrace.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := armtrace.NewRuntime(cfg)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("waiting for first state message")
	if err := rt.StartRecording(ctx, *file); err != nil {
		_ = rt.Shutdown(context.Background())
		return err
	}
	log.Printf("recording to %s", *file)

	if *duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*duration):
		}
	} else {
		<-ctx.Done()
	}

	stopErr := rt.StopRecording()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	return stopErr
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := armtrace.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func printUsage() {
	fmt.Printf(`armtrace CLI

Usage:
  armtrace <command> [flags]

Commands:
  record     Record a telemetry session to a CSV file
  validate   Load and validate a config file without connecting

Examples:
  armtrace record -config ./config.yaml -file ./session.csv -duration 30s
  armtrace validate -config ./config.yaml
`)
}
