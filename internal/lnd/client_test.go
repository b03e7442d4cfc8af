package lnd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/config"
	"github.com/voltr/surge/internal/tool"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.LNDConfig{RESTURL: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetInfo(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/getinfo" {
			t.Errorf("path = %s, want /v1/getinfo", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"alias":               "surge-node",
			"identity_pubkey":     "02abc",
			"num_active_channels": 4,
			"synced_to_chain":     true,
		})
	}))

	info, err := c.GetInfo(context.Background())
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Alias != "surge-node" {
		t.Errorf("Alias = %q, want surge-node", info.Alias)
	}
	if info.NumActiveChannels != 4 {
		t.Errorf("NumActiveChannels = %d, want 4", info.NumActiveChannels)
	}
	if !info.SyncedToChain {
		t.Error("SyncedToChain = false, want true")
	}
}

func TestErrorResponseSurfacesMessage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "wallet locked"})
	}))

	_, err := c.GetInfo(context.Background())
	if err == nil {
		t.Fatal("GetInfo succeeded, want error")
	}
	if got := err.Error(); got != "lnd: wallet locked" {
		t.Errorf("error = %q, want %q", got, "lnd: wallet locked")
	}
}

func TestConnectPeerToleratesAlreadyConnected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "already connected to peer: 02abc"})
	}))

	if err := c.ConnectPeer(context.Background(), "02abc", "1.2.3.4:9735"); err != nil {
		t.Errorf("ConnectPeer returned %v, want nil for already-connected peer", err)
	}
}

func TestOpenChannelReversesTxidBytes(t *testing.T) {
	// base64 of bytes 0x01 0x02 0x03; display txid is byte-reversed hex.
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["local_funding_amount"] != "5000000" {
			t.Errorf("local_funding_amount = %v, want \"5000000\"", req["local_funding_amount"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"funding_txid_bytes": "AQID",
			"output_index":       1,
		})
	}))

	point, err := c.OpenChannel(context.Background(), "02abc", 5000000, 10)
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	if point != "030201:1" {
		t.Errorf("channel point = %q, want 030201:1", point)
	}
}

func TestRegisterToolsDeclaresGatedKinds(t *testing.T) {
	reg := tool.NewRegistry()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	if err := RegisterTools(reg, c); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}

	wantStateChanging := map[string]bool{
		"open_channel":       true,
		"batch_open_channel": true,
		"set_fee_policy":     true,
	}
	for _, decl := range reg.Declarations() {
		if decl.Kind == tool.StateChanging && !wantStateChanging[decl.Name] {
			t.Errorf("tool %q is state-changing, expected read-only", decl.Name)
		}
		if wantStateChanging[decl.Name] && decl.Kind != tool.StateChanging {
			t.Errorf("tool %q is read-only, expected state-changing", decl.Name)
		}
	}
}

func TestListChannels(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"channels": []map[string]any{
				{"remote_pubkey": "02aaa", "capacity": "5000000", "local_balance": "4000000", "active": true},
				{"remote_pubkey": "02bbb", "capacity": "6000000", "local_balance": "100000", "active": false},
			},
		})
	}))

	channels, err := c.ListChannels(context.Background())
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("len(channels) = %d, want 2", len(channels))
	}
	if channels[0].Capacity != "5000000" {
		t.Errorf("Capacity = %q, want 5000000", channels[0].Capacity)
	}
	if channels[1].Active {
		t.Error("channels[1].Active = true, want false")
	}
}
