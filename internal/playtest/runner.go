package playtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/spotter/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes the complete round playtest.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting spotter playtest",
		logger.String("baseURL", config.BaseURL),
		logger.Int("rounds", config.NumRounds),
		logger.Int("players", config.NumPlayers),
		logger.Int("images", config.NumImages),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate round scripts
	scripts, err := generateScripts(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}

	// Step 3: Play the rounds concurrently
	if err := playRounds(ctx, config, scripts, stats); err != nil {
		return fmt.Errorf("round play failed: %w", err)
	}

	// Step 4: Let baseline refreshes drain
	logger.Get().Info(ctx, "waiting for settlements to drain")
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while draining: %w", ctx.Err())
	case <-time.After(SettleDrainDelay):
	}

	// Step 5: Retrieve player entries concurrently
	players, err := retrievePlayers(ctx, config, scripts, stats)
	if err != nil {
		return fmt.Errorf("player retrieval failed: %w", err)
	}

	// Step 6: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(ctx, config, players, leaderboard); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save scripts to file
	if err := saveScriptsToFile(ctx, config, scripts); err != nil {
		logger.Get().Warn(ctx, "failed to save scripts to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "playtest completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveScriptsToFile saves the generated round scripts to a JSON file so
// a run can be inspected afterwards.
func saveScriptsToFile(ctx context.Context, config *Config, scripts []Script) error {
	if len(scripts) == 0 {
		return fmt.Errorf("no scripts to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "playtest_scripts_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(scripts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scripts: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "scripts saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final playtest statistics.
func displayFinalStats(stats *Stats) {
	var successRate, roundsPerSecond float64

	if stats.RoundsPlayed > 0 {
		successRate = float64(stats.RoundsPlayed-stats.Failed) / float64(stats.RoundsPlayed) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		roundsPerSecond = float64(stats.RoundsPlayed) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("roundsPlanned", stats.RoundsPlanned),
		logger.Int("roundsPlayed", stats.RoundsPlayed),
		logger.Int("successes", stats.Successes),
		logger.Int("hardStops", stats.HardStops),
		logger.Int("giveUps", stats.GiveUps),
		logger.Int("failed", stats.Failed),
		logger.Int("playersRetrieved", stats.PlayersRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("completionRate", successRate),
		logger.Float64("roundsPerSecond", roundsPerSecond))
}
