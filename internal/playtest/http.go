package playtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/spotter/pkg/logger"
)

// HTTPClient wraps http.Client with a fixed timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body. A nil body sends an
// empty request.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// decodeResponse reads, closes and unmarshals the response body.
func decodeResponse(resp *http.Response, v interface{}) error {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// playRounds plays all scripted rounds concurrently using a worker pool.
func playRounds(ctx context.Context, config *Config, scripts []Script, stats *Stats) error {
	logger.Get().Info(ctx, "playing rounds",
		logger.Int("rounds", len(scripts)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)

	var (
		played    int64
		successes int64
		hardStops int64
		giveUps   int64
		failed    int64
	)

	scriptChan := make(chan Script, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	workerCount := minInt(config.Workers, len(scripts))
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for script := range scriptChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				outcome := playSingleRound(ctx, client, config, script)
				atomic.AddInt64(&played, 1)
				switch outcome {
				case "success":
					atomic.AddInt64(&successes, 1)
				case "hard_stop":
					atomic.AddInt64(&hardStops, 1)
				case "give_up":
					atomic.AddInt64(&giveUps, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				if config.Verbose {
					logger.Get().Debug(ctx, "round finished",
						logger.String("player", script.PlayerID),
						logger.String("image", script.ImageID),
						logger.String("outcome", outcome),
						logger.Int64("played", atomic.LoadInt64(&played)))
				}
			}
		}()
	}

	go func() {
		defer close(scriptChan)
		for _, script := range scripts {
			select {
			case <-ctx.Done():
				return
			case scriptChan <- script:
			}
		}
	}()

	wg.Wait()

	stats.RoundsPlayed = int(atomic.LoadInt64(&played))
	stats.Successes = int(atomic.LoadInt64(&successes))
	stats.HardStops = int(atomic.LoadInt64(&hardStops))
	stats.GiveUps = int(atomic.LoadInt64(&giveUps))
	stats.Failed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "round play completed",
		logger.Int("successes", stats.Successes),
		logger.Int("hardStops", stats.HardStops),
		logger.Int("giveUps", stats.GiveUps),
		logger.Int("failed", stats.Failed))

	if stats.RoundsPlayed == stats.Failed {
		return fmt.Errorf("all %d rounds failed", stats.Failed)
	}
	return nil
}

// playSingleRound drives one round through create, start, clicks and
// settlement, and returns the observed outcome.
func playSingleRound(ctx context.Context, client *HTTPClient, config *Config, script Script) string {
	roundID, err := createRound(ctx, client, config.BaseURL, script)
	if err != nil {
		logVerboseFailure(ctx, config, "create", script, err)
		return "failed"
	}

	if err := startRound(ctx, client, config.BaseURL, roundID); err != nil {
		logVerboseFailure(ctx, config, "start", script, err)
		return "failed"
	}

	// Deliberate misses, spaced wider than the miss cooldown so each
	// one counts.
	for i := 0; i < script.Misses; i++ {
		result, err := sendClick(ctx, client, config.BaseURL, roundID, missClick(script))
		if err != nil {
			logVerboseFailure(ctx, config, "miss", script, err)
			return "failed"
		}
		if result.Result == "hard_stop" {
			return "hard_stop"
		}
		select {
		case <-ctx.Done():
			return "failed"
		case <-time.After(config.MissDelay):
		}
	}

	select {
	case <-ctx.Done():
		return "failed"
	case <-time.After(script.ThinkTime):
	}

	if script.GiveUp {
		if err := giveUpRound(ctx, client, config.BaseURL, roundID); err != nil {
			logVerboseFailure(ctx, config, "give_up", script, err)
			return "failed"
		}
		return "give_up"
	}

	result, err := sendClick(ctx, client, config.BaseURL, roundID, hitClick(script))
	if err != nil {
		logVerboseFailure(ctx, config, "hit", script, err)
		return "failed"
	}
	switch result.Result {
	case "hit":
		return "success"
	case "hard_stop":
		return "hard_stop"
	default:
		logVerboseFailure(ctx, config, "hit", script,
			fmt.Errorf("unexpected click result %q", result.Result))
		return "failed"
	}
}

func createRound(ctx context.Context, client *HTTPClient, baseURL string, script Script) (string, error) {
	resp, err := client.Post(ctx, baseURL+"/api/rounds", createRoundPayload{
		ImageID:     script.ImageID,
		PlayerID:    script.PlayerID,
		DisplayName: script.DisplayName,
		NativeW:     script.NativeW,
		NativeH:     script.NativeH,
		TargetX:     script.TargetX,
		TargetY:     script.TargetY,
		TargetR:     script.TargetR,
	})
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		_ = decodeResponse(resp, nil)
		return "", fmt.Errorf("HTTP %d on create", resp.StatusCode)
	}
	var round roundPayload
	if err := decodeResponse(resp, &round); err != nil {
		return "", err
	}
	return round.RoundID, nil
}

func startRound(ctx context.Context, client *HTTPClient, baseURL, roundID string) error {
	resp, err := client.Post(ctx, baseURL+"/api/rounds/"+roundID+"/start", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = decodeResponse(resp, nil)
		return fmt.Errorf("HTTP %d on start", resp.StatusCode)
	}
	return decodeResponse(resp, nil)
}

func sendClick(ctx context.Context, client *HTTPClient, baseURL, roundID string, click clickPayload) (clickResult, error) {
	resp, err := client.Post(ctx, baseURL+"/api/rounds/"+roundID+"/clicks", click)
	if err != nil {
		return clickResult{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = decodeResponse(resp, nil)
		return clickResult{}, fmt.Errorf("HTTP %d on click", resp.StatusCode)
	}
	var result clickResult
	if err := decodeResponse(resp, &result); err != nil {
		return clickResult{}, err
	}
	return result, nil
}

func giveUpRound(ctx context.Context, client *HTTPClient, baseURL, roundID string) error {
	resp, err := client.Post(ctx, baseURL+"/api/rounds/"+roundID+"/giveup", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = decodeResponse(resp, nil)
		return fmt.Errorf("HTTP %d on give up", resp.StatusCode)
	}
	return decodeResponse(resp, nil)
}

// hitClick clicks the exact target centre at native scale.
func hitClick(script Script) clickPayload {
	return clickPayload{
		X:         script.TargetX,
		Y:         script.TargetY,
		RenderedW: script.NativeW,
		RenderedH: script.NativeH,
	}
}

// missClick clicks the corner farthest from the target, which is always
// outside the target radius.
func missClick(script Script) clickPayload {
	x, y := 0.0, 0.0
	if script.TargetX < script.NativeW/2 {
		x = script.NativeW - 1
	}
	if script.TargetY < script.NativeH/2 {
		y = script.NativeH - 1
	}
	return clickPayload{
		X:         x,
		Y:         y,
		RenderedW: script.NativeW,
		RenderedH: script.NativeH,
	}
}

func logVerboseFailure(ctx context.Context, config *Config, step string, script Script, err error) {
	if !config.Verbose {
		return
	}
	logger.Get().Warn(ctx, "round step failed",
		logger.String("step", step),
		logger.String("player", script.PlayerID),
		logger.String("image", script.ImageID),
		logger.Error(err))
}
