// Package types contains common types shared with the API layer.
package types

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"player_id"`
	Rating      float64 `json:"rating"`
	Games       int     `json:"games"`
	DisplayName string  `json:"display_name,omitempty"`
}
