package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/spotter/internal/playtest"
)

// Default configuration constants.
const (
	defaultNumRounds   = 200
	defaultNumPlayers  = 40
	defaultNumImages   = 12
	defaultTopN        = 25
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultMissDelay   = 300 * time.Millisecond
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numRounds  = flag.Int("rounds", defaultNumRounds, "Number of rounds to play")
		numPlayers = flag.Int("players", defaultNumPlayers, "Size of the simulated player pool")
		numImages  = flag.Int("images", defaultNumImages, "Size of the simulated image pool")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		missDelay  = flag.Duration("miss-delay", defaultMissDelay, "Gap between clicks, must exceed the service miss cooldown")
		outputFile = flag.String("output", "", "Output file for generated scripts (default: playtest_scripts_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: playtest_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp()
		return
	}

	if err := playtest.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &playtest.Config{
		BaseURL:    *baseURL,
		NumRounds:  *numRounds,
		NumPlayers: *numPlayers,
		NumImages:  *numImages,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		MissDelay:  *missDelay,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := playtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Playtest failed: " + err.Error() + "\n")
		return
	}
}
