package playtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spotter/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	archetypeDivisor   = 8
)

// Image geometry used for every simulated round.
const (
	nativeWidth   = 1920.0
	nativeHeight  = 1080.0
	targetRadius  = 48.0
	targetMarginW = nativeWidth - 2*targetRadius
	targetMarginH = nativeHeight - 2*targetRadius
)

// Think-time ranges per archetype, in milliseconds.
const (
	sniperThinkMin   = 60.0
	sniperThinkRange = 240.0
	steadyThinkMin   = 300.0
	steadyThinkRange = 700.0
	slowThinkMin     = 900.0
	slowThinkRange   = 1600.0
)

// Constants for player archetype cases.
const (
	caseSniper       = 0
	caseSteady       = 1
	caseSteadyMiss   = 2
	caseFumbler      = 3
	caseQuitter      = 4
	caseSlowButSure  = 5
	caseSecondChance = 6
	caseWildcard     = 7
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateScripts creates the round scripts over a shared player and image pool.
// Players repeat across rounds so ratings accumulate the way real traffic does.
func generateScripts(ctx context.Context, config *Config, stats *Stats) ([]Script, error) {
	if config.NumRounds <= 0 || config.NumPlayers <= 0 || config.NumImages <= 0 {
		return nil, fmt.Errorf("rounds, players and images must all be positive")
	}
	logger.Get().Info(ctx, "generating round scripts",
		logger.Int("rounds", config.NumRounds),
		logger.Int("players", config.NumPlayers),
		logger.Int("images", config.NumImages))

	players := make([]string, config.NumPlayers)
	names := make([]string, config.NumPlayers)
	for i := range players {
		players[i] = uuid.New().String()
		names[i] = "player-" + strconv.Itoa(i)
	}
	images := make([]string, config.NumImages)
	for i := range images {
		images[i] = "img-" + uuid.New().String()
	}

	scripts := make([]Script, config.NumRounds)
	for i := range scripts {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during script generation: %w", ctx.Err())
		default:
		}
		p := getRandomInt(config.NumPlayers)
		scripts[i] = generateSingleScript(players[p], names[p], images[getRandomInt(config.NumImages)])
	}

	stats.RoundsPlanned = len(scripts)
	logger.Get().Info(ctx, "generated round scripts", logger.Int("count", len(scripts)))
	return scripts, nil
}

// generateSingleScript rolls a player archetype and turns it into a script.
func generateSingleScript(playerID, displayName, imageID string) Script {
	s := Script{
		PlayerID:    playerID,
		DisplayName: displayName,
		ImageID:     imageID,
		NativeW:     nativeWidth,
		NativeH:     nativeHeight,
		TargetX:     targetRadius + getRandomFloat()*targetMarginW,
		TargetY:     targetRadius + getRandomFloat()*targetMarginH,
		TargetR:     targetRadius,
	}

	roll, _ := rand.Int(rand.Reader, big.NewInt(archetypeDivisor))
	switch roll.Int64() {
	case caseSniper:
		// Finds the target immediately.
		s.ThinkTime = thinkTime(sniperThinkMin, sniperThinkRange)
	case caseSteady, caseSteadyMiss:
		// One or two misses on the way. Most common.
		s.Misses = 1 + getRandomInt(2)
		s.ThinkTime = thinkTime(steadyThinkMin, steadyThinkRange)
	case caseFumbler:
		s.Misses = 3 + getRandomInt(3)
		s.ThinkTime = thinkTime(slowThinkMin, slowThinkRange)
	case caseQuitter:
		// Misses a couple of times and abandons the round.
		s.Misses = getRandomInt(3)
		s.GiveUp = true
		s.ThinkTime = thinkTime(steadyThinkMin, steadyThinkRange)
	case caseSlowButSure:
		s.ThinkTime = thinkTime(slowThinkMin, slowThinkRange)
	case caseSecondChance:
		s.Misses = 1
		s.ThinkTime = thinkTime(sniperThinkMin, sniperThinkRange)
	default:
		s.Misses = getRandomInt(4)
		s.ThinkTime = thinkTime(sniperThinkMin, slowThinkMin+slowThinkRange-sniperThinkMin)
	}
	return s
}

// thinkTime converts a millisecond range into a random duration.
func thinkTime(minMS, rangeMS float64) time.Duration {
	return time.Duration((minMS + getRandomFloat()*rangeMS) * float64(time.Millisecond))
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
