// Package analysis scores candidate peers. It combines a remote
// availability feed with graph data from the mempool client to explore a
// node's neighborhood.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/mempool"
)

// feedTTL bounds how long a fetched availability snapshot is reused.
const feedTTL = time.Hour

// NodeScore is one node's entry in the availability feed.
type NodeScore struct {
	Alias      string  `json:"alias"`
	Score      int     `json:"score"`      // 0..10000
	Centrality float64 `json:"centrality"` // betweenness, normalized
}

// feed is the wire shape of the availability document.
type feed struct {
	Scored map[string]NodeScore `json:"scored"`
}

// Analyzer caches the availability feed and walks the channel graph.
type Analyzer struct {
	feedURL    string
	graph      *mempool.Client
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	scores    map[string]NodeScore
	fetchedAt time.Time
}

func NewAnalyzer(feedURL string, graph *mempool.Client, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		feedURL: feedURL,
		graph:   graph,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Scores returns the availability map, refreshing the feed when the
// cached copy is stale. Without a configured feed URL it returns an
// empty map.
func (a *Analyzer) Scores(ctx context.Context) (map[string]NodeScore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.feedURL == "" {
		return map[string]NodeScore{}, nil
	}
	if a.scores != nil && time.Since(a.fetchedAt) < feedTTL {
		return a.scores, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		// A stale snapshot beats no snapshot.
		if a.scores != nil {
			a.logger.Warn("availability feed unreachable, serving stale scores", zap.Error(err))
			return a.scores, nil
		}
		return nil, fmt.Errorf("fetching availability feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability feed: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}
	var doc feed
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}

	a.scores = doc.Scored
	a.fetchedAt = time.Now()
	a.logger.Info("availability feed refreshed", zap.Int("nodes", len(a.scores)))
	return a.scores, nil
}

// Availability returns one node's score. Nodes absent from the feed get
// a zero score and found=false.
func (a *Analyzer) Availability(ctx context.Context, pubkey string) (NodeScore, bool, error) {
	scores, err := a.Scores(ctx)
	if err != nil {
		return NodeScore{}, false, err
	}
	s, ok := scores[pubkey]
	return s, ok, nil
}

// PeerLevel is one breadth-first ring around the root node.
type PeerLevel struct {
	Depth int        `json:"depth"`
	Peers []PeerInfo `json:"peers"`
}

// PeerInfo describes one discovered peer.
type PeerInfo struct {
	Pubkey      string `json:"pubkey"`
	Alias       string `json:"alias"`
	CapacitySat int64  `json:"capacity_sat"`
	Score       int    `json:"score"`
	Scored      bool   `json:"scored"`
}

// ExploreNetwork walks the public graph breadth-first from root. Each
// level keeps at most peersPerLevel nodes, preferring peers on larger
// channels. Nodes already visited are not revisited.
func (a *Analyzer) ExploreNetwork(ctx context.Context, root string, maxDepth, peersPerLevel int) ([]PeerLevel, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if peersPerLevel <= 0 {
		peersPerLevel = 5
	}

	scores, err := a.Scores(ctx)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{root: true}
	frontier := []string{root}
	levels := make([]PeerLevel, 0, maxDepth)

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		level := PeerLevel{Depth: depth}
		var next []string

		for _, node := range frontier {
			channels, err := a.graph.NodeChannels(ctx, node)
			if err != nil {
				a.logger.Warn("graph lookup failed during exploration",
					zap.String("pubkey", node), zap.Error(err))
				continue
			}
			// Largest channels first so the per-level cut keeps the
			// most significant peers.
			sortByCapacity(channels)

			kept := 0
			for _, ch := range channels {
				if kept >= peersPerLevel {
					break
				}
				peer := ch.Node.PublicKey
				if peer == "" || visited[peer] {
					continue
				}
				visited[peer] = true
				kept++

				info := PeerInfo{
					Pubkey:      peer,
					Alias:       ch.Node.Alias,
					CapacitySat: ch.Capacity,
				}
				if s, ok := scores[peer]; ok {
					info.Score = s.Score
					info.Scored = true
					if info.Alias == "" {
						info.Alias = s.Alias
					}
				}
				level.Peers = append(level.Peers, info)
				next = append(next, peer)
			}
		}

		if len(level.Peers) == 0 {
			break
		}
		levels = append(levels, level)
		frontier = next
	}

	return levels, nil
}

func sortByCapacity(channels []mempool.GraphChannel) {
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Capacity > channels[j].Capacity
	})
}
