package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voltr/surge/internal/lnd"
	"github.com/voltr/surge/internal/tool"
)

// RegisterTools registers the planning tools. Only execute_channel_opens
// changes state; the rest produce plans for the model to reason over.
func RegisterTools(r *tool.Registry, p *Planner) error {
	tools := []struct {
		decl    tool.Declaration
		handler tool.Handler
	}{
		{
			decl: tool.Declaration{
				Name:        "propose_channel_opens",
				Description: "Build a channel open plan from the confirmed wallet balance, keeping the reserve untouched. Candidates come from network rankings filtered by blacklist and existing peers.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				plan, err := p.ProposeChannelOpens(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(plan)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "execute_channel_opens",
				Description: "Open the channels from an approved plan, batched into one funding transaction when possible. Requires operator confirmation.",
				Params: []tool.Param{
					{Name: "channels", Type: "array", Description: "List of {pubkey, amount_sat} objects", Required: true},
					{Name: "sat_per_vbyte", Type: "integer", Description: "Funding fee rate; omit to use the half-hour estimate"},
				},
				Kind: tool.StateChanging,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				raw, ok := args["channels"].([]any)
				if !ok {
					return nil, fmt.Errorf("channels must be a list of {pubkey, amount_sat} objects")
				}
				targets := make([]lnd.BatchTarget, 0, len(raw))
				for _, item := range raw {
					entry, ok := item.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("channels must be a list of {pubkey, amount_sat} objects")
					}
					targets = append(targets, lnd.BatchTarget{
						Pubkey:    tool.Str(entry, "pubkey", ""),
						AmountSat: tool.Int(entry, "amount_sat", 0),
					})
				}

				points, err := p.ExecuteOpens(ctx, targets, tool.Int(args, "sat_per_vbyte", 0))
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_points": points, "opened": len(points)}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "analyze_channel_liquidity_flow",
				Description: "Join open channels with recent forwarding history, classifying each as draining, filling or stagnant.",
				Params: []tool.Param{
					{Name: "days", Type: "integer", Description: "History window in days (default 7)"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				flows, err := p.LiquidityFlow(ctx, int(tool.Int(args, "days", 7)))
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"channels": flows, "count": len(flows)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "propose_fee_adjustments",
				Description: "Suggest per-channel fee rate changes based on liquidity ratios and recent flow. Apply with set_fee_policy.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				adjustments, err := p.ProposeFeeAdjustments(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"adjustments": adjustments, "count": len(adjustments)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "find_rebalance_opportunities",
				Description: "Pair local-heavy channels with remote-heavy ones and size a circular payment that moves both toward balance.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				opportunities, err := p.FindRebalanceOpportunities(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"opportunities": opportunities, "count": len(opportunities)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "propose_channel_closes",
				Description: "Identify mature channels in the bottom tenth of routed outbound volume whose capital could be reclaimed by closing.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				proposals, err := p.ProposeChannelCloses(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"proposals": proposals, "count": len(proposals)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "should_open_to_loop",
				Description: "Decide whether opening a channel to the Loop node is advisable given current inbound liquidity and on-chain funds.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				advice, err := p.ShouldOpenToLoop(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(advice)
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

func asMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
