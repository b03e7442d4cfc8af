// Package lnd talks to an LND node over its REST proxy. Requests carry
// the admin macaroon in the Grpc-Metadata-macaroon header and verify the
// node's TLS certificate when one is configured.
package lnd

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/config"
)

// Client is an HTTP client for the LND REST proxy.
type Client struct {
	baseURL    string
	macaroon   string // hex-encoded
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client from the LND section of the config. The
// macaroon and TLS cert are optional so the client can point at plain
// HTTP endpoints (regtest setups, test servers).
func NewClient(cfg config.LNDConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(cfg.RESTURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if cfg.MacaroonPath != "" {
		raw, err := os.ReadFile(cfg.MacaroonPath)
		if err != nil {
			return nil, fmt.Errorf("reading macaroon %s: %w", cfg.MacaroonPath, err)
		}
		c.macaroon = hex.EncodeToString(raw)
	}

	if cfg.TLSCertPath != "" {
		pem, err := os.ReadFile(cfg.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("reading tls cert %s: %w", cfg.TLSCertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls cert %s contains no certificates", cfg.TLSCertPath)
		}
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		}
	}

	return c, nil
}

// do issues a request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.macaroon != "" {
		req.Header.Set("Grpc-Metadata-macaroon", c.macaroon)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var restErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &restErr) == nil {
			if restErr.Message != "" {
				return fmt.Errorf("lnd: %s", restErr.Message)
			}
			if restErr.Error != "" {
				return fmt.Errorf("lnd: %s", restErr.Error)
			}
		}
		return fmt.Errorf("lnd: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// NodeInfo is the response to /v1/getinfo. LND's REST proxy encodes
// 64-bit integers as strings.
type NodeInfo struct {
	Version            string   `json:"version"`
	IdentityPubkey     string   `json:"identity_pubkey"`
	Alias              string   `json:"alias"`
	NumActiveChannels  int      `json:"num_active_channels"`
	NumPendingChannels int      `json:"num_pending_channels"`
	NumPeers           int      `json:"num_peers"`
	BlockHeight        int      `json:"block_height"`
	SyncedToChain      bool     `json:"synced_to_chain"`
	SyncedToGraph      bool     `json:"synced_to_graph"`
	URIs               []string `json:"uris"`
}

func (c *Client) GetInfo(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := c.do(ctx, http.MethodGet, "/v1/getinfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type WalletBalance struct {
	TotalBalance       string `json:"total_balance"`
	ConfirmedBalance   string `json:"confirmed_balance"`
	UnconfirmedBalance string `json:"unconfirmed_balance"`
}

func (c *Client) WalletBalance(ctx context.Context) (*WalletBalance, error) {
	var bal WalletBalance
	if err := c.do(ctx, http.MethodGet, "/v1/balance/blockchain", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

type Amount struct {
	Sat  string `json:"sat"`
	Msat string `json:"msat"`
}

type ChannelBalance struct {
	LocalBalance             Amount `json:"local_balance"`
	RemoteBalance            Amount `json:"remote_balance"`
	UnsettledLocalBalance    Amount `json:"unsettled_local_balance"`
	UnsettledRemoteBalance   Amount `json:"unsettled_remote_balance"`
	PendingOpenLocalBalance  Amount `json:"pending_open_local_balance"`
	PendingOpenRemoteBalance Amount `json:"pending_open_remote_balance"`
}

func (c *Client) ChannelBalance(ctx context.Context) (*ChannelBalance, error) {
	var bal ChannelBalance
	if err := c.do(ctx, http.MethodGet, "/v1/balance/channels", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// State returns the wallet state, e.g. "SERVER_ACTIVE" once the node is
// fully started.
func (c *Client) State(ctx context.Context) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/state", nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

type Peer struct {
	PubKey   string `json:"pub_key"`
	Address  string `json:"address"`
	SatSent  string `json:"sat_sent"`
	SatRecv  string `json:"sat_recv"`
	Inbound  bool   `json:"inbound"`
	PingTime string `json:"ping_time"`
}

func (c *Client) ListPeers(ctx context.Context) ([]Peer, error) {
	var resp struct {
		Peers []Peer `json:"peers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// ConnectPeer connects to a peer at host. Connecting to a peer we are
// already connected to is not an error.
func (c *Client) ConnectPeer(ctx context.Context, pubkey, host string) error {
	req := map[string]any{
		"addr": map[string]string{
			"pubkey": pubkey,
			"host":   host,
		},
		"perm":    false,
		"timeout": "10",
	}
	err := c.do(ctx, http.MethodPost, "/v1/peers", req, nil)
	if err != nil && strings.Contains(err.Error(), "already connected") {
		return nil
	}
	return err
}

type Channel struct {
	Active                bool   `json:"active"`
	RemotePubkey          string `json:"remote_pubkey"`
	ChannelPoint          string `json:"channel_point"`
	ChanID                string `json:"chan_id"`
	Capacity              string `json:"capacity"`
	LocalBalance          string `json:"local_balance"`
	RemoteBalance         string `json:"remote_balance"`
	TotalSatoshisSent     string `json:"total_satoshis_sent"`
	TotalSatoshisReceived string `json:"total_satoshis_received"`
	Private               bool   `json:"private"`
	Lifetime              string `json:"lifetime"` // seconds the channel has been open
}

func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/channels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// OpenChannel opens a channel synchronously and returns the funding
// outpoint as "txid:index".
func (c *Client) OpenChannel(ctx context.Context, pubkey string, amountSat, satPerVbyte int64) (string, error) {
	req := map[string]any{
		"node_pubkey_string":   pubkey,
		"local_funding_amount": fmt.Sprintf("%d", amountSat),
	}
	if satPerVbyte > 0 {
		req["sat_per_vbyte"] = fmt.Sprintf("%d", satPerVbyte)
	}
	var resp struct {
		FundingTxidBytes string `json:"funding_txid_bytes"`
		FundingTxidStr   string `json:"funding_txid_str"`
		OutputIndex      int    `json:"output_index"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/channels", req, &resp); err != nil {
		return "", err
	}
	txid := resp.FundingTxidStr
	if txid == "" {
		txid = txidFromBytes(resp.FundingTxidBytes)
	}
	return fmt.Sprintf("%s:%d", txid, resp.OutputIndex), nil
}

// BatchTarget is one channel in a batch open.
type BatchTarget struct {
	Pubkey    string
	AmountSat int64
}

// BatchOpenChannels opens several channels in one funding transaction
// and returns the pending funding outpoints.
func (c *Client) BatchOpenChannels(ctx context.Context, targets []BatchTarget, satPerVbyte int64) ([]string, error) {
	channels := make([]map[string]any, 0, len(targets))
	for _, t := range targets {
		raw, err := hex.DecodeString(t.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey %q: %w", t.Pubkey, err)
		}
		channels = append(channels, map[string]any{
			"node_pubkey":          base64.StdEncoding.EncodeToString(raw),
			"local_funding_amount": fmt.Sprintf("%d", t.AmountSat),
		})
	}
	req := map[string]any{"channels": channels}
	if satPerVbyte > 0 {
		req["sat_per_vbyte"] = fmt.Sprintf("%d", satPerVbyte)
	}

	var resp struct {
		PendingChannels []struct {
			Txid        string `json:"txid"`
			OutputIndex int    `json:"output_index"`
		} `json:"pending_channels"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/channels/batch", req, &resp); err != nil {
		return nil, err
	}

	points := make([]string, 0, len(resp.PendingChannels))
	for _, pc := range resp.PendingChannels {
		points = append(points, fmt.Sprintf("%s:%d", txidFromBytes(pc.Txid), pc.OutputIndex))
	}
	return points, nil
}

// FeePolicy is a routing policy update applied to all channels.
type FeePolicy struct {
	BaseFeeMsat   int64
	FeeRatePPM    int64
	TimeLockDelta int64
}

// UpdateFeePolicy applies the policy globally.
func (c *Client) UpdateFeePolicy(ctx context.Context, p FeePolicy) error {
	req := map[string]any{
		"global":          true,
		"base_fee_msat":   fmt.Sprintf("%d", p.BaseFeeMsat),
		"fee_rate_ppm":    p.FeeRatePPM,
		"time_lock_delta": p.TimeLockDelta,
	}
	return c.do(ctx, http.MethodPost, "/v1/chanpolicy", req, nil)
}

// ForwardingEvent is one HTLC forwarded through the node.
type ForwardingEvent struct {
	Timestamp string `json:"timestamp"`
	ChanIDIn  string `json:"chan_id_in"`
	ChanIDOut string `json:"chan_id_out"`
	AmtIn     string `json:"amt_in"`
	AmtOut    string `json:"amt_out"`
	Fee       string `json:"fee"`
	FeeMsat   string `json:"fee_msat"`
}

// ForwardingHistory returns forwarding events since the given time.
func (c *Client) ForwardingHistory(ctx context.Context, since time.Time, maxEvents int) ([]ForwardingEvent, error) {
	req := map[string]any{
		"start_time":     fmt.Sprintf("%d", since.Unix()),
		"num_max_events": maxEvents,
	}
	var resp struct {
		ForwardingEvents []ForwardingEvent `json:"forwarding_events"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/switch", req, &resp); err != nil {
		return nil, err
	}
	return resp.ForwardingEvents, nil
}

// GraphNode is a node's entry in the public channel graph.
type GraphNode struct {
	Node struct {
		PubKey    string `json:"pub_key"`
		Alias     string `json:"alias"`
		Addresses []struct {
			Network string `json:"network"`
			Addr    string `json:"addr"`
		} `json:"addresses"`
	} `json:"node"`
	NumChannels   int    `json:"num_channels"`
	TotalCapacity string `json:"total_capacity"`
}

func (c *Client) GetGraphNode(ctx context.Context, pubkey string) (*GraphNode, error) {
	var node GraphNode
	if err := c.do(ctx, http.MethodGet, "/v1/graph/node/"+pubkey, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// txidFromBytes converts base64-encoded funding txid bytes to the
// display txid (byte-reversed hex).
func txidFromBytes(b64 string) string {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return b64
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	return hex.EncodeToString(raw)
}
