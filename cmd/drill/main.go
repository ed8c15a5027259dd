package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/stomp/internal/drill"
	"github.com/okian/stomp/pkg/logger"
)

const (
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8000", "Base URL of the service")
		athletes    = flag.Int("athletes", drill.DefaultAthletes, "Athlete accounts to provision")
		coaches     = flag.Int("coaches", drill.DefaultCoaches, "Coach accounts to provision")
		referees    = flag.Int("referees", drill.DefaultReferees, "Referee accounts to provision")
		teammates   = flag.Int("teammates", drill.DefaultTeammates, "Teammate accounts to provision")
		readings    = flag.Int("readings", drill.DefaultReadingsPerAthlete, "Resting readings per athlete")
		emergencies = flag.Int("emergencies", drill.DefaultEmergencies, "Athletes that go into crisis")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent HTTP workers")
		timeout     = flag.Duration("timeout", drill.DefaultTimeout, "HTTP request timeout")
		wait        = flag.Duration("wait", drill.DefaultDeliveryTimeout, "How long to wait for websocket frames")
		outputFile  = flag.String("output", "", "Write the JSON report to this file")
		logFile     = flag.String("log", "", "Also write logs to this file")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		drill.ShowHelp()
		return
	}

	closeLog, err := drill.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeadline)
	_, err = drill.Run(ctx, &drill.Config{
		BaseURL:            *baseURL,
		Athletes:           *athletes,
		Coaches:            *coaches,
		Referees:           *referees,
		Teammates:          *teammates,
		ReadingsPerAthlete: *readings,
		Emergencies:        *emergencies,
		Workers:            *workers,
		Timeout:            *timeout,
		DeliveryTimeout:    *wait,
		Password:           drill.DefaultPassword,
		OutputFile:         *outputFile,
		Verbose:            *verbose,
	})
	cancel()
	if err != nil {
		logger.Get().Error(context.Background(), "drill failed", logger.Error(err))
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}
