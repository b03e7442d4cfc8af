package lnd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voltr/surge/internal/tool"
)

// RegisterTools registers the node-facing tools on the registry.
func RegisterTools(r *tool.Registry, c *Client) error {
	tools := []struct {
		decl    tool.Declaration
		handler tool.Handler
	}{
		{
			decl: tool.Declaration{
				Name:        "get_node_info",
				Description: "Get information about the local node: alias, pubkey, version, channel and peer counts, sync status.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				info, err := c.GetInfo(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(info)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_wallet_balance",
				Description: "Get the on-chain wallet balance in satoshis (total, confirmed, unconfirmed).",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				bal, err := c.WalletBalance(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(bal)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_channel_balance",
				Description: "Get the total balance held in channels, split into local and remote sides.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				bal, err := c.ChannelBalance(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(bal)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_node_state",
				Description: "Get the wallet state of the local node, e.g. SERVER_ACTIVE when fully started.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				state, err := c.State(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"state": state}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "list_peers",
				Description: "List currently connected peers with traffic counters and ping times.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				peers, err := c.ListPeers(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"peers": peers, "count": len(peers)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "list_channels",
				Description: "List open channels with capacity, local/remote balance and activity status.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				channels, err := c.ListChannels(ctx)
				if err != nil {
					return nil, err
				}
				return asMap(map[string]any{"channels": channels, "count": len(channels)})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_node_uri",
				Description: "Get the connection URI (pubkey@host:port) for a node. Defaults to the local node when pubkey is omitted.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Node public key; omit for the local node"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				if pubkey == "" {
					info, err := c.GetInfo(ctx)
					if err != nil {
						return nil, err
					}
					if len(info.URIs) == 0 {
						return nil, fmt.Errorf("local node advertises no URIs")
					}
					return map[string]any{"uris": info.URIs}, nil
				}
				node, err := c.GetGraphNode(ctx, pubkey)
				if err != nil {
					return nil, err
				}
				uris := make([]string, 0, len(node.Node.Addresses))
				for _, addr := range node.Node.Addresses {
					uris = append(uris, fmt.Sprintf("%s@%s", pubkey, addr.Addr))
				}
				if len(uris) == 0 {
					return nil, fmt.Errorf("node %s advertises no addresses", pubkey)
				}
				return asMap(map[string]any{"alias": node.Node.Alias, "uris": uris})
			},
		},
		{
			decl: tool.Declaration{
				Name:        "connect_peer",
				Description: "Connect to a peer. Connecting twice to the same peer succeeds.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Peer public key", Required: true},
					{Name: "host", Type: "string", Description: "host:port to dial", Required: true},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				host := tool.Str(args, "host", "")
				if err := c.ConnectPeer(ctx, pubkey, host); err != nil {
					return nil, err
				}
				return map[string]any{"connected": true, "pubkey": pubkey}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "batch_connect_peers",
				Description: "Connect to several peers in one call. Reports per-peer success or failure.",
				Params: []tool.Param{
					{Name: "peers", Type: "array", Description: "List of {pubkey, host} objects", Required: true},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return c.batchConnect(ctx, args)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "open_channel",
				Description: "Open a channel to a peer, funding it from the on-chain wallet. Requires operator confirmation.",
				Params: []tool.Param{
					{Name: "pubkey", Type: "string", Description: "Peer public key", Required: true},
					{Name: "amount_sat", Type: "integer", Description: "Channel capacity in satoshis", Required: true},
					{Name: "sat_per_vbyte", Type: "integer", Description: "Funding fee rate; omit for the node's estimate"},
				},
				Kind: tool.StateChanging,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				pubkey := tool.Str(args, "pubkey", "")
				amount := tool.Int(args, "amount_sat", 0)
				feeRate := tool.Int(args, "sat_per_vbyte", 0)
				point, err := c.OpenChannel(ctx, pubkey, amount, feeRate)
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_point": point, "pubkey": pubkey, "amount_sat": amount}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "batch_open_channel",
				Description: "Open several channels in a single funding transaction. Requires operator confirmation.",
				Params: []tool.Param{
					{Name: "channels", Type: "array", Description: "List of {pubkey, amount_sat} objects", Required: true},
					{Name: "sat_per_vbyte", Type: "integer", Description: "Funding fee rate; omit for the node's estimate"},
				},
				Kind: tool.StateChanging,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return c.batchOpen(ctx, args)
			},
		},
		{
			decl: tool.Declaration{
				Name:        "set_fee_policy",
				Description: "Update the routing fee policy on all channels. Requires operator confirmation.",
				Params: []tool.Param{
					{Name: "fee_rate_ppm", Type: "integer", Description: "Proportional fee in parts per million", Required: true},
					{Name: "base_fee_msat", Type: "integer", Description: "Base fee in millisatoshis (default 1000)"},
					{Name: "time_lock_delta", Type: "integer", Description: "CLTV delta (default 80)"},
				},
				Kind: tool.StateChanging,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				policy := FeePolicy{
					BaseFeeMsat:   tool.Int(args, "base_fee_msat", 1000),
					FeeRatePPM:    tool.Int(args, "fee_rate_ppm", 0),
					TimeLockDelta: tool.Int(args, "time_lock_delta", 80),
				}
				if err := c.UpdateFeePolicy(ctx, policy); err != nil {
					return nil, err
				}
				return asMap(map[string]any{"updated": true, "fee_rate_ppm": policy.FeeRatePPM, "base_fee_msat": policy.BaseFeeMsat})
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

func (c *Client) batchConnect(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, ok := args["peers"].([]any)
	if !ok {
		return nil, fmt.Errorf("peers must be a list of {pubkey, host} objects")
	}

	results := make([]map[string]any, 0, len(raw))
	connected := 0
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("peers must be a list of {pubkey, host} objects")
		}
		pubkey := tool.Str(entry, "pubkey", "")
		host := tool.Str(entry, "host", "")
		if err := c.ConnectPeer(ctx, pubkey, host); err != nil {
			results = append(results, map[string]any{"pubkey": pubkey, "connected": false, "error": err.Error()})
			continue
		}
		connected++
		results = append(results, map[string]any{"pubkey": pubkey, "connected": true})
	}
	return map[string]any{"results": results, "connected": connected, "total": len(raw)}, nil
}

func (c *Client) batchOpen(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, ok := args["channels"].([]any)
	if !ok {
		return nil, fmt.Errorf("channels must be a list of {pubkey, amount_sat} objects")
	}

	targets := make([]BatchTarget, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("channels must be a list of {pubkey, amount_sat} objects")
		}
		targets = append(targets, BatchTarget{
			Pubkey:    tool.Str(entry, "pubkey", ""),
			AmountSat: tool.Int(entry, "amount_sat", 0),
		})
	}

	feeRate := tool.Int(args, "sat_per_vbyte", 0)
	points, err := c.BatchOpenChannels(ctx, targets, feeRate)
	if err != nil {
		return nil, err
	}
	return asMap(map[string]any{"channel_points": points, "opened": len(points)})
}

// asMap round-trips a value through JSON into a generic map so tool
// payloads stay uniform regardless of the source type.
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
