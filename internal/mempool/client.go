// Package mempool reads public network data from a mempool.space
// compatible API: on-chain fee estimates and Lightning graph rankings.
package mempool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/config"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.MempoolConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mempool request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mempool: unexpected status %d for %s", resp.StatusCode, path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// FeeEstimates are recommended on-chain fee rates in sat/vB.
type FeeEstimates struct {
	FastestFee  int `json:"fastestFee"`
	HalfHourFee int `json:"halfHourFee"`
	HourFee     int `json:"hourFee"`
	EconomyFee  int `json:"economyFee"`
	MinimumFee  int `json:"minimumFee"`
}

func (c *Client) RecommendedFees(ctx context.Context) (*FeeEstimates, error) {
	var fees FeeEstimates
	if err := c.get(ctx, "/v1/fees/recommended", &fees); err != nil {
		return nil, err
	}
	return &fees, nil
}

// RankedNode is one entry in the Lightning node rankings.
type RankedNode struct {
	PublicKey string `json:"publicKey"`
	Alias     string `json:"alias"`
	Capacity  int64  `json:"capacity"`
	Channels  int    `json:"channels"`
}

// Ranking criteria accepted by TopNodes.
const (
	ByLiquidity    = "liquidity"
	ByConnectivity = "connectivity"
)

// TopNodes returns the network's top nodes ranked by total capacity or
// by channel count.
func (c *Client) TopNodes(ctx context.Context, criteria string) ([]RankedNode, error) {
	switch criteria {
	case ByLiquidity, ByConnectivity:
	default:
		return nil, fmt.Errorf("unknown ranking criteria %q (want %s or %s)", criteria, ByLiquidity, ByConnectivity)
	}

	var nodes []RankedNode
	if err := c.get(ctx, "/v1/lightning/nodes/rankings/"+criteria, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// NodeStats is a node's aggregate view in the public graph.
type NodeStats struct {
	PublicKey    string `json:"public_key"`
	Alias        string `json:"alias"`
	Capacity     int64  `json:"capacity"`
	ChannelCount int    `json:"active_channel_count"`
	FirstSeen    int64  `json:"first_seen"`
	UpdatedAt    int64  `json:"updated_at"`
}

func (c *Client) NodeStats(ctx context.Context, pubkey string) (*NodeStats, error) {
	var stats NodeStats
	if err := c.get(ctx, "/v1/lightning/nodes/"+url.PathEscape(pubkey), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GraphChannel is one public channel of a node.
type GraphChannel struct {
	ID       string `json:"id"`
	Capacity int64  `json:"capacity"`
	Node     struct {
		PublicKey string `json:"public_key"`
		Alias     string `json:"alias"`
	} `json:"node"`
}

// NodeChannels returns a node's open public channels.
func (c *Client) NodeChannels(ctx context.Context, pubkey string) ([]GraphChannel, error) {
	var channels []GraphChannel
	path := "/v1/lightning/channels?public_key=" + url.QueryEscape(pubkey) + "&status=open"
	if err := c.get(ctx, path, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}
