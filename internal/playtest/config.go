package playtest

import "time"

// Config holds configuration for the round playtest.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumRounds  int           // Number of rounds to play
	NumPlayers int           // Size of the simulated player pool
	NumImages  int           // Size of the simulated image pool
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	MissDelay  time.Duration // Gap between clicks so the miss cooldown accepts them
	OutputFile string        // Output file for the generated scripts
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Script describes one simulated round before it is played.
type Script struct {
	PlayerID    string        `json:"player_id"`
	DisplayName string        `json:"display_name"`
	ImageID     string        `json:"image_id"`
	NativeW     float64       `json:"native_width"`
	NativeH     float64       `json:"native_height"`
	TargetX     float64       `json:"target_x"`
	TargetY     float64       `json:"target_y"`
	TargetR     float64       `json:"target_radius"`
	Misses      int           `json:"misses"`
	GiveUp      bool          `json:"give_up"`
	ThinkTime   time.Duration `json:"think_time_ns"`
}

// createRoundPayload mirrors POST /api/rounds.
type createRoundPayload struct {
	ImageID     string  `json:"image_id"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	NativeW     float64 `json:"native_width"`
	NativeH     float64 `json:"native_height"`
	TargetX     float64 `json:"target_x"`
	TargetY     float64 `json:"target_y"`
	TargetR     float64 `json:"target_radius"`
}

// clickPayload mirrors POST /api/rounds/{id}/clicks.
type clickPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	RenderedW float64 `json:"rendered_width"`
	RenderedH float64 `json:"rendered_height"`
}

// roundPayload is the round state returned by create/start.
type roundPayload struct {
	RoundID  string `json:"round_id"`
	ImageID  string `json:"image_id"`
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Misses   int    `json:"misses"`
}

// clickResult is the response to a click or give-up.
type clickResult struct {
	Result  string          `json:"result"`
	Misses  int             `json:"misses"`
	Summary *summaryPayload `json:"summary,omitempty"`
}

// summaryPayload is the settlement summary.
type summaryPayload struct {
	RoundID     string  `json:"round_id"`
	ImageID     string  `json:"image_id"`
	PlayerID    string  `json:"player_id"`
	Outcome     string  `json:"outcome"`
	RawMS       float64 `json:"raw_ms"`
	UsedMS      float64 `json:"used_ms"`
	Misses      int     `json:"misses"`
	BaselineMS  float64 `json:"baseline_ms"`
	Ratio       float64 `json:"ratio"`
	Score       float64 `json:"score"`
	Rated       bool    `json:"rated"`
	PlayerAfter float64 `json:"player_rating_after"`
	SaveError   string  `json:"save_error,omitempty"`
}

// Entry represents a leaderboard or player rank entry.
type Entry struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"player_id"`
	Rating      float64 `json:"rating"`
	Games       int     `json:"games"`
	DisplayName string  `json:"display_name"`
}

// Stats holds playtest statistics.
type Stats struct {
	RoundsPlanned      int
	RoundsPlayed       int
	Successes          int
	HardStops          int
	GiveUps            int
	Failed             int
	PlayersRetrieved   int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
