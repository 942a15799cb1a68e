package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PeerScore is one business's engagement score within its category.
type PeerScore struct {
	BusinessID uuid.UUID
	Score      int
}

// RankPeers orders peers by score, highest first. Ties keep the order of
// peers, so repeated calls with the same input give the same ranking.
func RankPeers(peers []uuid.UUID, scores map[uuid.UUID]int) []PeerScore {
	ranked := make([]PeerScore, 0, len(peers))
	seen := make(map[uuid.UUID]struct{}, len(peers))
	for _, id := range peers {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ranked = append(ranked, PeerScore{BusinessID: id, Score: scores[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// RankOf returns the 1-based position of target. A target missing from the
// ranking gets len(ranked)+1.
func RankOf(ranked []PeerScore, target uuid.UUID) int {
	for i, p := range ranked {
		if p.BusinessID == target {
			return i + 1
		}
	}
	return len(ranked) + 1
}

// CategoryRanking is a business's position among its category peers.
type CategoryRanking struct {
	Category string
	Rank     int
	Total    int
	Score    int
}

// RankingKey identifies a cached ranking snapshot.
type RankingKey struct {
	Category   string
	WindowDays int
	Date       time.Time
}

// String renders the cache key.
func (k RankingKey) String() string {
	return fmt.Sprintf("mosaic:ranking:%s:%d:%s", strings.ToLower(k.Category), k.WindowDays, Day(k.Date).Format(time.DateOnly))
}

// RankingCache stores ordered peer rankings per category, window and day.
type RankingCache interface {
	// Get reports false on a miss.
	Get(ctx context.Context, key RankingKey) ([]PeerScore, bool, error)
	Set(ctx context.Context, key RankingKey, ranked []PeerScore) error
}

// SamePeers reports whether ranked covers exactly the ids in peers.
func SamePeers(ranked []PeerScore, peers []uuid.UUID) bool {
	want := make(map[uuid.UUID]struct{}, len(peers))
	for _, id := range peers {
		want[id] = struct{}{}
	}
	if len(want) != len(ranked) {
		return false
	}
	for _, p := range ranked {
		if _, ok := want[p.BusinessID]; !ok {
			return false
		}
	}
	return true
}
