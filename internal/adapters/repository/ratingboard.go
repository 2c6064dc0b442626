package repository

import (
	"math"
	"sort"
	"sync"

	"github.com/okian/spotter/internal/domain/types"
)

// Treap-based, in-memory player ranking index.
//
// Ordering: rating DESC, then playerID ASC (deterministic).
// The comparator treats "less" as ranks-earlier, so in-order traversal
// produces the leaderboard from best to worst. Unlike a best-only
// scoreboard, ratings move both ways, so Upsert replaces the old node
// unconditionally.

// ratingScale controls fixed-point scaling from float64.
const ratingScale = 1_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return ratingFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return ratingFP(math.MinInt64)
	}
	scaled := x * ratingScale
	if scaled > float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

// boardRecord holds the fixed-point rating plus metadata for a player.
type boardRecord struct {
	rating      ratingFP
	games       int
	displayName string
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aRating, aID) ranks earlier than (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating // higher rating ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// ratingToPriority keeps higher-rated nodes nearer the root. The offset
// shifts negative fixed-point values into the unsigned range.
func ratingToPriority(r ratingFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(r) + offset
}

func insert(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: ratingToPriority(rating), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest ratings first).
func collectTopN(n *node, limit int, records map[string]boardRecord, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, ok := records[n.id]; ok {
			*out = append(*out, types.Entry{
				PlayerID:    n.id,
				Rating:      toFloat(rec.rating),
				Games:       rec.games,
				DisplayName: rec.displayName,
			})
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// collectAll appends every entry in rank order.
func collectAll(n *node, records map[string]boardRecord, out *[]types.Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, records, out)
	if rec, ok := records[n.id]; ok {
		*out = append(*out, types.Entry{
			PlayerID:    n.id,
			Rating:      toFloat(rec.rating),
			Games:       rec.games,
			DisplayName: rec.displayName,
		})
	}
	collectAll(n.right, records, out)
}

// sortEntries orders entries by rating desc, playerID asc.
func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
}

// assignRanks numbers entries 1..n; equal ratings share a rank and the
// following distinct rating continues from the consecutive position.
func assignRanks(entries []types.Entry) {
	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank
		same := 1
		for j := i + 1; j < len(entries) && entries[j].Rating == entries[i].Rating; j++ {
			entries[j].Rank = currentRank
			same++
		}
		currentRank++
		i += same - 1
	}
}

// RatingBoard maintains an ordered index of player ratings for rank and
// top-N queries. Safe for concurrent use.
type RatingBoard struct {
	mu   sync.RWMutex
	root *node
	byID map[string]boardRecord
}

// NewRatingBoard constructs an empty board.
func NewRatingBoard() *RatingBoard {
	return &RatingBoard{byID: make(map[string]boardRecord)}
}

// Upsert records the player's current rating, replacing any previous one.
func (b *RatingBoard) Upsert(playerID string, rating float64, games int, displayName string) {
	fp := toFixedPoint(rating)
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byID[playerID]; ok {
		if displayName == "" {
			displayName = old.displayName
		}
		b.root = deleteNode(b.root, playerID, old.rating)
	}
	b.byID[playerID] = boardRecord{rating: fp, games: games, displayName: displayName}
	b.root = insert(b.root, playerID, fp)
}

// Rank returns the player's leaderboard entry, or ErrNotFound.
func (b *RatingBoard) Rank(playerID string) (types.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.byID[playerID]; !ok {
		return types.Entry{}, ErrNotFound
	}

	all := make([]types.Entry, 0, len(b.byID))
	collectAll(b.root, b.byID, &all)
	sortEntries(all)
	assignRanks(all)

	for _, e := range all {
		if e.PlayerID == playerID {
			return e, nil
		}
	}
	return types.Entry{}, ErrNotFound
}

// TopN returns the best n entries ordered by rating desc.
func (b *RatingBoard) TopN(n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Entry, 0, n)
	collectTopN(b.root, n, b.byID, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of tracked players.
func (b *RatingBoard) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
