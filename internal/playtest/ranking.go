package playtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/spotter/pkg/logger"
)

// retrievePlayers fetches the rank entry of every distinct player that
// appeared in the scripts, concurrently.
func retrievePlayers(ctx context.Context, config *Config, scripts []Script, stats *Stats) ([]Entry, error) {
	playerIDs := uniquePlayerIDs(scripts)
	logger.Get().Info(ctx, "retrieving player entries",
		logger.Int("players", len(playerIDs)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)

	entries := make([]Entry, len(playerIDs))
	var (
		retrieved int64
		failed    int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	workerCount := minInt(config.Workers, len(playerIDs))
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				entry, err := retrieveSinglePlayer(ctx, client, config.BaseURL, playerIDs[index])
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "failed to get player entry",
							logger.String("player", playerIDs[index]),
							logger.Error(err))
					}
					continue
				}
				entries[index] = entry
				atomic.AddInt64(&retrieved, 1)
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range playerIDs {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	// Players whose every round was abandoned have no rating row yet;
	// their lookups 404 and are dropped here.
	validEntries := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.PlayerID != "" {
			validEntries = append(validEntries, entry)
		}
	}

	stats.PlayersRetrieved = len(validEntries)
	logger.Get().Info(ctx, "player retrieval completed",
		logger.Int("retrieved", len(validEntries)),
		logger.Int64("failed", atomic.LoadInt64(&failed)))

	return validEntries, nil
}

// retrieveSinglePlayer fetches the rank entry for one player.
func retrieveSinglePlayer(ctx context.Context, client *HTTPClient, baseURL, playerID string) (Entry, error) {
	resp, err := client.Get(ctx, baseURL+"/api/players/"+playerID)
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = decodeResponse(resp, nil)
		return Entry{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var entry Entry
	if err := decodeResponse(resp, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "getting leaderboard", logger.Int("topN", config.TopN))

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/api/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = decodeResponse(resp, nil)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var leaderboard []Entry
	if err := decodeResponse(resp, &leaderboard); err != nil {
		return nil, err
	}

	stats.LeaderboardEntries = len(leaderboard)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("entries", len(leaderboard)))
	return leaderboard, nil
}

// uniquePlayerIDs collects distinct player IDs in script order.
func uniquePlayerIDs(scripts []Script) []string {
	seen := make(map[string]struct{}, len(scripts))
	ids := make([]string, 0, len(scripts))
	for _, s := range scripts {
		if _, ok := seen[s.PlayerID]; ok {
			continue
		}
		seen[s.PlayerID] = struct{}{}
		ids = append(ids, s.PlayerID)
	}
	return ids
}
