package analysis

import (
	"context"

	"github.com/voltr/surge/internal/tool"
)

// RegisterTools registers the peer scoring tools. Both are read-only.
func RegisterTools(r *tool.Registry, a *Analyzer) error {
	tools := []struct {
		decl    tool.Declaration
		handler tool.Handler
	}{
		{
			decl: tool.Declaration{
				Name:        "get_node_availability",
				Description: "Get a node's availability score (0-10000) from the scored-node feed. Unscored nodes report scored=false.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Node public key", Required: true},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				score, found, err := a.Availability(ctx, pubkey)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"pubkey":     pubkey,
					"scored":     found,
					"alias":      score.Alias,
					"score":      score.Score,
					"centrality": score.Centrality,
				}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "analyze_peer_network",
				Description: "Explore the channel graph breadth-first from a node, scoring the peers found at each level. Useful for finding well-connected second-degree peers.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Root node public key", Required: true},
					{Name: "max_depth", Type: "integer", Description: "How many levels to walk (default 2)"},
					{Name: "peers_per_level", Type: "integer", Description: "Peers kept per node per level (default 5)"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				maxDepth := int(tool.Int(args, "max_depth", 2))
				perLevel := int(tool.Int(args, "peers_per_level", 5))

				levels, err := a.ExploreNetwork(ctx, pubkey, maxDepth, perLevel)
				if err != nil {
					return nil, err
				}

				out := make([]map[string]any, 0, len(levels))
				total := 0
				for _, level := range levels {
					peers := make([]map[string]any, 0, len(level.Peers))
					for _, p := range level.Peers {
						peers = append(peers, map[string]any{
							"pubkey":       p.Pubkey,
							"alias":        p.Alias,
							"capacity_sat": p.CapacitySat,
							"score":        p.Score,
							"scored":       p.Scored,
						})
					}
					total += len(peers)
					out = append(out, map[string]any{"depth": level.Depth, "peers": peers})
				}
				return map[string]any{"root": pubkey, "levels": out, "discovered": total}, nil
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
