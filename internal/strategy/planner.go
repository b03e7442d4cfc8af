// Package strategy turns node and network state into actionable plans:
// channel open proposals, fee adjustments and rebalance candidates. The
// planner only reads; acting on a plan goes through the gated execution
// tools.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/voltr/surge/internal/analysis"
	"github.com/voltr/surge/internal/lnd"
	"github.com/voltr/surge/internal/mempool"
)

const (
	// walletReserveSat is never deployed into channels.
	walletReserveSat = 1_000_000
	// minChannelSat is the smallest channel worth opening.
	minChannelSat = 5_000_000
	// maxProposals bounds a single open plan.
	maxProposals = 4

	// Lightning Labs Loop node. Opening to it enables future loop-outs.
	loopNodePubkey = "021c97a90a411ff2b10dc2a8e32de2f29d2fa49d41bfbb52bd416e460db0747d0d"
	// loopInboundThresholdSat: below this much inbound, loop-out capacity
	// is worth acquiring.
	loopInboundThresholdSat = 30_000_000
	// loopOnchainThresholdSat: on-chain funds needed to justify a Loop
	// channel on top of the reserve.
	loopOnchainThresholdSat = 31_000_000
)

// NodeClient is the slice of the LND client the planner needs.
type NodeClient interface {
	WalletBalance(ctx context.Context) (*lnd.WalletBalance, error)
	ListChannels(ctx context.Context) ([]lnd.Channel, error)
	ForwardingHistory(ctx context.Context, since time.Time, maxEvents int) ([]lnd.ForwardingEvent, error)
	OpenChannel(ctx context.Context, pubkey string, amountSat, satPerVbyte int64) (string, error)
	BatchOpenChannels(ctx context.Context, targets []lnd.BatchTarget, satPerVbyte int64) ([]string, error)
	GetGraphNode(ctx context.Context, pubkey string) (*lnd.GraphNode, error)
}

// GraphClient supplies network-wide rankings and fee estimates.
type GraphClient interface {
	TopNodes(ctx context.Context, criteria string) ([]mempool.RankedNode, error)
	RecommendedFees(ctx context.Context) (*mempool.FeeEstimates, error)
}

// Scorer supplies availability scores for candidate peers.
type Scorer interface {
	Scores(ctx context.Context) (map[string]analysis.NodeScore, error)
}

type Planner struct {
	node      NodeClient
	graph     GraphClient
	scorer    Scorer
	blacklist map[string]bool
	logger    *zap.Logger
}

func NewPlanner(node NodeClient, graph GraphClient, scorer Scorer, blacklist []string, logger *zap.Logger) *Planner {
	bl := make(map[string]bool, len(blacklist))
	for _, pk := range blacklist {
		bl[pk] = true
	}
	return &Planner{
		node:      node,
		graph:     graph,
		scorer:    scorer,
		blacklist: bl,
		logger:    logger,
	}
}

// OpenProposal is one suggested channel open.
type OpenProposal struct {
	Pubkey    string `json:"pubkey"`
	Alias     string `json:"alias"`
	AmountSat int64  `json:"amount_sat"`
	Score     int    `json:"score"`
	Channels  int    `json:"channels"`
}

// OpenPlan is what ProposeChannelOpens returns. An empty Proposals
// slice with a Reason means no opens are advisable right now.
type OpenPlan struct {
	BudgetSat    int64          `json:"budget_sat"`
	ReserveSat   int64          `json:"reserve_sat"`
	Proposals    []OpenProposal `json:"proposals"`
	Reason       string         `json:"reason,omitempty"`
	SkippedPeers int            `json:"skipped_existing_peers"`
}

// ProposeChannelOpens builds an open plan from the confirmed wallet
// balance. It keeps the reserve untouched, excludes blacklisted nodes
// and nodes we already have channels to, and prefers well-scored,
// well-connected candidates.
func (p *Planner) ProposeChannelOpens(ctx context.Context) (*OpenPlan, error) {
	bal, err := p.node.WalletBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading wallet balance: %w", err)
	}
	budget := sats(bal.ConfirmedBalance) - walletReserveSat

	plan := &OpenPlan{BudgetSat: max(budget, 0), ReserveSat: walletReserveSat}
	if budget < minChannelSat {
		plan.Reason = fmt.Sprintf("confirmed balance leaves %d sat after the %d sat reserve; below the %d sat minimum channel size",
			max(budget, 0), int64(walletReserveSat), int64(minChannelSat))
		return plan, nil
	}

	channels, err := p.node.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	existing := make(map[string]bool, len(channels))
	for _, ch := range channels {
		existing[ch.RemotePubkey] = true
	}

	candidates, err := p.rankCandidates(ctx, existing, plan)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		plan.Reason = "no eligible candidates after filtering blacklist and existing peers"
		return plan, nil
	}

	count := budget / minChannelSat
	if count > maxProposals {
		count = maxProposals
	}
	if int64(len(candidates)) < count {
		count = int64(len(candidates))
	}
	perChannel := budget / count

	for _, c := range candidates[:count] {
		c.AmountSat = perChannel
		plan.Proposals = append(plan.Proposals, c)
	}
	return plan, nil
}

// rankCandidates merges the liquidity and connectivity rankings,
// removing duplicates, blacklisted nodes and current peers, and orders
// the rest by availability score then channel count.
func (p *Planner) rankCandidates(ctx context.Context, existing map[string]bool, plan *OpenPlan) ([]OpenProposal, error) {
	scores, err := p.scorer.Scores(ctx)
	if err != nil {
		p.logger.Warn("availability scores unavailable, ranking without them", zap.Error(err))
		scores = map[string]analysis.NodeScore{}
	}

	seen := map[string]bool{}
	var out []OpenProposal
	for _, criteria := range []string{mempool.ByLiquidity, mempool.ByConnectivity} {
		nodes, err := p.graph.TopNodes(ctx, criteria)
		if err != nil {
			return nil, fmt.Errorf("fetching %s ranking: %w", criteria, err)
		}
		for _, n := range nodes {
			if seen[n.PublicKey] || p.blacklist[n.PublicKey] {
				continue
			}
			if existing[n.PublicKey] {
				seen[n.PublicKey] = true
				plan.SkippedPeers++
				continue
			}
			seen[n.PublicKey] = true
			c := OpenProposal{Pubkey: n.PublicKey, Alias: n.Alias, Channels: n.Channels}
			if s, ok := scores[n.PublicKey]; ok {
				c.Score = s.Score
			}
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Channels > out[j].Channels
	})
	return out, nil
}

// ExecuteOpens opens the given channels, batching them into one funding
// transaction when there is more than one. When no fee rate is given it
// uses the half-hour estimate.
func (p *Planner) ExecuteOpens(ctx context.Context, targets []lnd.BatchTarget, satPerVbyte int64) ([]string, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no channels to open")
	}
	for _, t := range targets {
		if p.blacklist[t.Pubkey] {
			return nil, fmt.Errorf("node %s is blacklisted", t.Pubkey)
		}
		if t.AmountSat < minChannelSat {
			return nil, fmt.Errorf("channel to %s is %d sat, below the %d sat minimum", t.Pubkey, t.AmountSat, int64(minChannelSat))
		}
	}

	if satPerVbyte <= 0 {
		fees, err := p.graph.RecommendedFees(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching fee estimate: %w", err)
		}
		satPerVbyte = int64(fees.HalfHourFee)
	}

	if len(targets) == 1 {
		point, err := p.node.OpenChannel(ctx, targets[0].Pubkey, targets[0].AmountSat, satPerVbyte)
		if err != nil {
			return nil, err
		}
		return []string{point}, nil
	}
	return p.node.BatchOpenChannels(ctx, targets, satPerVbyte)
}

// FlowDirection classifies a channel's recent traffic.
type FlowDirection string

const (
	FlowDraining FlowDirection = "draining" // local balance leaving
	FlowFilling  FlowDirection = "filling"  // local balance arriving
	FlowStagnant FlowDirection = "stagnant" // no recent forwards
)

// ChannelFlow summarizes one channel's liquidity movement.
type ChannelFlow struct {
	ChanID       string        `json:"chan_id"`
	RemotePubkey string        `json:"remote_pubkey"`
	CapacitySat  int64         `json:"capacity_sat"`
	LocalSat     int64         `json:"local_sat"`
	LocalRatio   float64       `json:"local_ratio"`
	OutSat       int64         `json:"forwarded_out_sat"`
	InSat        int64         `json:"forwarded_in_sat"`
	FeeEarnedSat int64         `json:"fee_earned_sat"`
	Direction    FlowDirection `json:"direction"`
}

// LiquidityFlow joins open channels with the forwarding history of the
// last `days` days.
func (p *Planner) LiquidityFlow(ctx context.Context, days int) ([]ChannelFlow, error) {
	if days <= 0 {
		days = 7
	}

	channels, err := p.node.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	events, err := p.node.ForwardingHistory(ctx, time.Now().AddDate(0, 0, -days), 10000)
	if err != nil {
		return nil, fmt.Errorf("reading forwarding history: %w", err)
	}

	type agg struct{ in, out, fee int64 }
	byChan := map[string]*agg{}
	forChan := func(id string) *agg {
		a := byChan[id]
		if a == nil {
			a = &agg{}
			byChan[id] = a
		}
		return a
	}
	for _, ev := range events {
		forChan(ev.ChanIDIn).in += sats(ev.AmtIn)
		out := forChan(ev.ChanIDOut)
		out.out += sats(ev.AmtOut)
		out.fee += sats(ev.Fee)
	}

	flows := make([]ChannelFlow, 0, len(channels))
	for _, ch := range channels {
		capacity := sats(ch.Capacity)
		local := sats(ch.LocalBalance)
		flow := ChannelFlow{
			ChanID:       ch.ChanID,
			RemotePubkey: ch.RemotePubkey,
			CapacitySat:  capacity,
			LocalSat:     local,
		}
		if capacity > 0 {
			flow.LocalRatio = float64(local) / float64(capacity)
		}
		if a := byChan[ch.ChanID]; a != nil {
			flow.InSat = a.in
			flow.OutSat = a.out
			flow.FeeEarnedSat = a.fee
		}
		switch {
		case flow.OutSat == 0 && flow.InSat == 0:
			flow.Direction = FlowStagnant
		case flow.OutSat > flow.InSat:
			flow.Direction = FlowDraining
		default:
			flow.Direction = FlowFilling
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// FeeAdjustment is one suggested policy change.
type FeeAdjustment struct {
	ChanID         string  `json:"chan_id"`
	RemotePubkey   string  `json:"remote_pubkey"`
	LocalRatio     float64 `json:"local_ratio"`
	SuggestedPPM   int64   `json:"suggested_fee_rate_ppm"`
	Rationale      string  `json:"rationale"`
	CurrentOutflow int64   `json:"forwarded_out_sat"`
}

// ProposeFeeAdjustments suggests per-channel fee changes from recent
// flow: depleted channels get a higher rate to slow outflow, saturated
// ones a lower rate to attract it.
func (p *Planner) ProposeFeeAdjustments(ctx context.Context) ([]FeeAdjustment, error) {
	flows, err := p.LiquidityFlow(ctx, 7)
	if err != nil {
		return nil, err
	}

	var out []FeeAdjustment
	for _, f := range flows {
		switch {
		case f.LocalRatio < 0.2:
			out = append(out, FeeAdjustment{
				ChanID:         f.ChanID,
				RemotePubkey:   f.RemotePubkey,
				LocalRatio:     f.LocalRatio,
				SuggestedPPM:   1000,
				Rationale:      "local side depleted; raise rate to slow outflow",
				CurrentOutflow: f.OutSat,
			})
		case f.LocalRatio > 0.8:
			out = append(out, FeeAdjustment{
				ChanID:         f.ChanID,
				RemotePubkey:   f.RemotePubkey,
				LocalRatio:     f.LocalRatio,
				SuggestedPPM:   50,
				Rationale:      "local side saturated; lower rate to attract outflow",
				CurrentOutflow: f.OutSat,
			})
		}
	}
	return out, nil
}

// RebalanceOpportunity pairs a saturated channel with a depleted one.
type RebalanceOpportunity struct {
	FromChanID string `json:"from_chan_id"` // local-heavy
	ToChanID   string `json:"to_chan_id"`   // remote-heavy
	AmountSat  int64  `json:"amount_sat"`
}

// FindRebalanceOpportunities pairs channels above 70% local with
// channels below 30% local, sized to move both toward balance.
func (p *Planner) FindRebalanceOpportunities(ctx context.Context) ([]RebalanceOpportunity, error) {
	flows, err := p.LiquidityFlow(ctx, 7)
	if err != nil {
		return nil, err
	}

	var sources, sinks []ChannelFlow
	for _, f := range flows {
		switch {
		case f.LocalRatio > 0.7:
			sources = append(sources, f)
		case f.LocalRatio < 0.3 && f.CapacitySat > 0:
			sinks = append(sinks, f)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].LocalRatio > sources[j].LocalRatio })
	sort.Slice(sinks, func(i, j int) bool { return sinks[i].LocalRatio < sinks[j].LocalRatio })

	var out []RebalanceOpportunity
	for i := 0; i < len(sources) && i < len(sinks); i++ {
		src, dst := sources[i], sinks[i]
		excess := src.LocalSat - src.CapacitySat/2
		deficit := dst.CapacitySat/2 - dst.LocalSat
		amount := min(excess, deficit)
		if amount <= 0 {
			continue
		}
		out = append(out, RebalanceOpportunity{
			FromChanID: src.ChanID,
			ToChanID:   dst.ChanID,
			AmountSat:  amount,
		})
	}
	return out, nil
}

// CloseProposal is one channel suggested for closing.
type CloseProposal struct {
	Alias        string `json:"alias,omitempty"`
	ChanID       string `json:"chan_id"`
	ChannelPoint string `json:"channel_point"`
	RemotePubkey string `json:"remote_pubkey"`
	CapacitySat  int64  `json:"capacity_sat"`
	RoutedOutSat int64  `json:"routed_out_sat"`
	AgeDays      int    `json:"age_days"`
}

// minCloseAgeDays protects young channels: the network needs time to
// discover a channel before it can route.
const minCloseAgeDays = 30

// ProposeChannelCloses identifies channels whose capital earns nothing:
// open longer than 30 days and in the bottom tenth of routed outbound
// volume. Closing them reclaims on-chain liquidity for better peers.
func (p *Planner) ProposeChannelCloses(ctx context.Context) ([]CloseProposal, error) {
	channels, err := p.node.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	events, err := p.node.ForwardingHistory(ctx, time.Now().AddDate(0, 0, -minCloseAgeDays), 10000)
	if err != nil {
		return nil, fmt.Errorf("reading forwarding history: %w", err)
	}

	routedOut := map[string]int64{}
	for _, ev := range events {
		routedOut[ev.ChanIDOut] += sats(ev.AmtOut)
	}

	var aged []CloseProposal
	for _, ch := range channels {
		ageDays := int(sats(ch.Lifetime) / (24 * 60 * 60))
		if ageDays <= minCloseAgeDays {
			continue
		}
		aged = append(aged, CloseProposal{
			ChanID:       ch.ChanID,
			ChannelPoint: ch.ChannelPoint,
			RemotePubkey: ch.RemotePubkey,
			CapacitySat:  sats(ch.Capacity),
			RoutedOutSat: routedOut[ch.ChanID],
			AgeDays:      ageDays,
		})
	}
	if len(aged) == 0 {
		return nil, nil
	}

	sort.Slice(aged, func(i, j int) bool { return aged[i].RoutedOutSat < aged[j].RoutedOutSat })
	idle := aged[:len(aged)/10+1]

	for i := range idle {
		node, err := p.node.GetGraphNode(ctx, idle[i].RemotePubkey)
		if err != nil {
			p.logger.Warn("alias lookup failed",
				zap.String("pubkey", idle[i].RemotePubkey),
				zap.Error(err),
			)
			continue
		}
		idle[i].Alias = node.Node.Alias
	}
	return idle, nil
}

// LoopAdvice is the outcome of ShouldOpenToLoop.
type LoopAdvice struct {
	Recommended  bool   `json:"recommended"`
	LoopPubkey   string `json:"loop_pubkey"`
	InboundSat   int64  `json:"inbound_sat"`
	OnchainSat   int64  `json:"onchain_sat"`
	SuggestedSat int64  `json:"suggested_amount_sat,omitempty"`
	Reason       string `json:"reason"`
}

// ShouldOpenToLoop recommends opening a channel to the Loop node when
// inbound liquidity is low and there are enough on-chain funds to fund
// one without touching the reserve.
func (p *Planner) ShouldOpenToLoop(ctx context.Context) (*LoopAdvice, error) {
	bal, err := p.node.WalletBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading wallet balance: %w", err)
	}
	channels, err := p.node.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}

	var inbound int64
	for _, ch := range channels {
		inbound += sats(ch.RemoteBalance)
		if ch.RemotePubkey == loopNodePubkey {
			return &LoopAdvice{
				LoopPubkey: loopNodePubkey,
				InboundSat: inbound,
				OnchainSat: sats(bal.ConfirmedBalance),
				Reason:     "a channel to the Loop node already exists",
			}, nil
		}
	}

	advice := &LoopAdvice{
		LoopPubkey: loopNodePubkey,
		InboundSat: inbound,
		OnchainSat: sats(bal.ConfirmedBalance),
	}
	switch {
	case inbound >= loopInboundThresholdSat:
		advice.Reason = fmt.Sprintf("inbound liquidity of %d sat is sufficient", inbound)
	case advice.OnchainSat < loopOnchainThresholdSat:
		advice.Reason = fmt.Sprintf("on-chain balance of %d sat cannot fund a Loop channel plus the reserve", advice.OnchainSat)
	default:
		advice.Recommended = true
		advice.SuggestedSat = advice.OnchainSat - walletReserveSat
		advice.Reason = "inbound liquidity is low and on-chain funds can cover a Loop channel"
	}
	return advice, nil
}

// sats parses LND's string-encoded satoshi amounts. Malformed or empty
// values count as zero.
func sats(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
