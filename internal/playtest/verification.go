package playtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/spotter/pkg/logger"
)

// verifyResults cross-checks the leaderboard against individually
// retrieved player entries.
func verifyResults(ctx context.Context, config *Config, players, leaderboard []Entry) error {
	logger.Get().Info(ctx, "verifying results")

	if len(players) == 0 {
		return fmt.Errorf("no player entries to verify")
	}

	sortedPlayers := make([]Entry, len(players))
	copy(sortedPlayers, players)
	sort.Slice(sortedPlayers, func(i, j int) bool {
		return sortedPlayers[i].Rating > sortedPlayers[j].Rating
	})

	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(sortedPlayers, leaderboard); err != nil {
			logger.Get().Warn(ctx, "leaderboard consistency warning", logger.Error(err))
		} else {
			logger.Get().Info(ctx, "leaderboard consistency verified")
		}
	}

	displayTopPlayers(ctx, sortedPlayers, leaderboard, config.Verbose)

	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks ordering, dense ranks and
// agreement between the leaderboard and per-player lookups.
func verifyLeaderboardConsistency(sortedPlayers, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	topPlayer := sortedPlayers[0]
	topBoard := leaderboard[0]
	if topBoard.Rating != topPlayer.Rating {
		return fmt.Errorf("top leaderboard rating (%.1f) does not match best player lookup (%.1f)",
			topBoard.Rating, topPlayer.Rating)
	}

	for i := 1; i < len(leaderboard); i++ {
		prev, cur := leaderboard[i-1], leaderboard[i]
		if cur.Rating > prev.Rating {
			return fmt.Errorf("leaderboard not sorted: entry %d outrates entry %d", i, i-1)
		}
		// Ties share a rank; the next distinct rating takes the next
		// consecutive rank.
		switch {
		case cur.Rating == prev.Rating && cur.Rank != prev.Rank:
			return fmt.Errorf("tied ratings at entries %d and %d carry different ranks", i-1, i)
		case cur.Rating < prev.Rating && cur.Rank != prev.Rank+1:
			return fmt.Errorf("rank jumps from %d to %d at entry %d", prev.Rank, cur.Rank, i)
		}
	}

	// Spot-check that leaderboard rows agree with direct lookups.
	byID := make(map[string]Entry, len(sortedPlayers))
	for _, e := range sortedPlayers {
		byID[e.PlayerID] = e
	}
	for _, row := range leaderboard {
		direct, ok := byID[row.PlayerID]
		if !ok {
			continue
		}
		if direct.Rating != row.Rating {
			return fmt.Errorf("player %s rating differs between leaderboard (%.1f) and lookup (%.1f)",
				row.PlayerID, row.Rating, direct.Rating)
		}
	}

	return nil
}

// displayTopPlayers shows the best players from lookups and from the
// leaderboard.
func displayTopPlayers(ctx context.Context, sortedPlayers, leaderboard []Entry, verbose bool) {
	topN := minInt(10, len(sortedPlayers))

	logger.Get().Info(ctx, "top players from lookups", logger.Int("count", topN))
	for i := 0; i < topN; i++ {
		entry := sortedPlayers[i]
		logger.Get().Info(ctx, "player",
			logger.Int("position", i+1),
			logger.String("name", entry.DisplayName),
			logger.Float64("rating", entry.Rating),
			logger.Int("games", entry.Games))
	}

	if len(leaderboard) > 0 {
		boardTopN := minInt(topN, len(leaderboard))
		logger.Get().Info(ctx, "top players from leaderboard", logger.Int("count", boardTopN))
		for i := 0; i < boardTopN; i++ {
			entry := leaderboard[i]
			logger.Get().Info(ctx, "entry",
				logger.Int("rank", entry.Rank),
				logger.String("name", entry.DisplayName),
				logger.Float64("rating", entry.Rating),
				logger.Int("games", entry.Games))
		}
	}

	if verbose && len(sortedPlayers) > 0 {
		logger.Get().Info(ctx, "rating statistics",
			logger.Float64("average", averageRating(sortedPlayers)),
			logger.Float64("maximum", sortedPlayers[0].Rating),
			logger.Float64("minimum", sortedPlayers[len(sortedPlayers)-1].Rating))
	}
}

// averageRating calculates the mean rating across entries.
func averageRating(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, entry := range entries {
		sum += entry.Rating
	}
	return sum / float64(len(entries))
}
