package mempool

import (
	"context"

	"github.com/voltr/surge/internal/tool"
)

// RegisterTools registers the public network data tools. All of them
// are read-only.
func RegisterTools(r *tool.Registry, c *Client) error {
	tools := []struct {
		decl    tool.Declaration
		handler tool.Handler
	}{
		{
			decl: tool.Declaration{
				Name:        "get_fee_recommendations",
				Description: "Get recommended on-chain fee rates in sat/vB for different confirmation targets.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				fees, err := c.RecommendedFees(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"fastest_sat_per_vbyte":   fees.FastestFee,
					"half_hour_sat_per_vbyte": fees.HalfHourFee,
					"hour_sat_per_vbyte":      fees.HourFee,
					"economy_sat_per_vbyte":   fees.EconomyFee,
					"minimum_sat_per_vbyte":   fees.MinimumFee,
				}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_top_nodes",
				Description: "List the network's top Lightning nodes ranked by liquidity (total capacity) or connectivity (channel count).",
				Params: []tool.Param{
					{Name: "criteria", Type: "string", Description: "Ranking: liquidity or connectivity (default liquidity)"},
					{Name: "limit", Type: "integer", Description: "Maximum nodes to return (default 20)"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				criteria := tool.Str(args, "criteria", ByLiquidity)
				limit := int(tool.Int(args, "limit", 20))

				nodes, err := c.TopNodes(ctx, criteria)
				if err != nil {
					return nil, err
				}
				if limit > 0 && len(nodes) > limit {
					nodes = nodes[:limit]
				}

				out := make([]map[string]any, 0, len(nodes))
				for _, n := range nodes {
					out = append(out, map[string]any{
						"pubkey":       n.PublicKey,
						"alias":        n.Alias,
						"capacity_sat": n.Capacity,
						"channels":     n.Channels,
					})
				}
				return map[string]any{"criteria": criteria, "nodes": out}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_node_channels",
				Description: "List a node's open public channels with capacity and counterparty.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Node public key", Required: true},
					{Name: "limit", Type: "integer", Description: "Maximum channels to return (default 50)"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				limit := int(tool.Int(args, "limit", 50))

				channels, err := c.NodeChannels(ctx, pubkey)
				if err != nil {
					return nil, err
				}
				total := len(channels)
				if limit > 0 && len(channels) > limit {
					channels = channels[:limit]
				}

				out := make([]map[string]any, 0, len(channels))
				for _, ch := range channels {
					out = append(out, map[string]any{
						"id":           ch.ID,
						"capacity_sat": ch.Capacity,
						"peer_pubkey":  ch.Node.PublicKey,
						"peer_alias":   ch.Node.Alias,
					})
				}
				return map[string]any{"pubkey": pubkey, "total": total, "channels": out}, nil
			},
		},
	}

	for _, t := range tools {
		if err := r.Register(t.decl, t.handler); err != nil {
			return err
		}
	}
	return nil
}
