package scenario

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Simulation constants.
const (
	baselineVolatile = 1000.0
	stablePrice      = 1.0

	minTradeInterval    = 5 * time.Second
	tradeIntervalSpread = 5 * time.Second
	minTradeAmount      = 1.0
	maxTradeAmount      = 11.0
	tradeAmountSpread   = maxTradeAmount - minTradeAmount

	initialStaked   = 1_000_000.0
	stakingCeiling  = 1_500_000.0
	baseStakeRate   = 1000.0
	stakeRateSpread = 2000.0
	rewardRate      = 5.0

	dipWarmup = 5 * time.Second
	dipWindow = 30 * time.Second
	dipDepth  = 200.0
	dipFloor  = 800.0
)

// Source supplies uniform values in [0, 1).
type Source interface {
	Float64() float64
}

// topic is the handler pair for one topic id. step is a pure function of the
// state, the current time and the random source; view renders the payload.
type topic struct {
	init func(s *State, rnd Source)
	step func(s State, now time.Time, rnd Source) State
	view func(s State) any
}

var topics = map[string]topic{
	TopicIntro: {
		step: func(s State, _ time.Time, _ Source) State { return s },
		view: func(State) any { return IntroPayload{} },
	},
	TopicLiquidityPools: {
		step: stepLiquidity,
		view: viewLiquidity,
	},
	TopicStaking: {
		init: initStaking,
		step: stepStaking,
		view: viewStaking,
	},
	TopicStablecoins: {
		step: stepStablecoins,
		view: viewStablecoins,
	},
}

// IntroPayload is empty.
type IntroPayload struct{}

// LiquidityPayload reports prices and the latest synthetic trade.
type LiquidityPayload struct {
	Prices    map[string]float64 `json:"prices"`
	LastTrade *Trade             `json:"lastTrade"`
}

// StakingPayload reports pool growth.
type StakingPayload struct {
	Prices         map[string]float64 `json:"prices"`
	TotalStaked    float64            `json:"totalStaked"`
	RewardRate     float64            `json:"rewardRate"`
	ElapsedMinutes float64            `json:"elapsedMinutes"`
}

// StablecoinPayload reports the volatile asset during a market dip.
type StablecoinPayload struct {
	Prices             map[string]float64 `json:"prices"`
	MarketDipStarted   bool               `json:"marketDipStarted"`
	MarketDipStartedAt *time.Time         `json:"marketDipStartedAt,omitempty"`
}

func defaultPrices() map[string]float64 {
	return map[string]float64{
		AssetVolatile: baselineVolatile,
		AssetStable:   stablePrice,
	}
}

func stepLiquidity(s State, now time.Time, rnd Source) State {
	if _, ok := s.PendingEvents[EventLiquidityProvided]; !ok {
		return s
	}
	if s.LastTrade != nil && now.Sub(s.LastTradeAt) < s.NextTradeAfter {
		return s
	}

	side := "sell"
	if rnd.Float64() < 0.5 {
		side = "buy"
	}
	amount, _ := decimal.NewFromFloat(minTradeAmount + rnd.Float64()*tradeAmountSpread).Round(2).Float64()

	s.LastTrade = &Trade{Type: side, Amount: amount, Asset: AssetVolatile, Timestamp: now}
	s.LastTradeAt = now
	s.NextTradeAfter = minTradeInterval + time.Duration(rnd.Float64()*float64(tradeIntervalSpread))
	return s
}

func viewLiquidity(s State) any {
	p := LiquidityPayload{Prices: copyPrices(s.Prices)}
	if s.LastTrade != nil {
		t := *s.LastTrade
		p.LastTrade = &t
	}
	return p
}

func initStaking(s *State, rnd Source) {
	s.TotalStaked = initialStaked
	s.StakeRatePerMinute = baseStakeRate + rnd.Float64()*stakeRateSpread
	s.RewardRate = rewardRate
}

// stepStaking derives the total from elapsed time since start, so repeated
// calls at one instant yield the same value.
func stepStaking(s State, _ time.Time, _ Source) State {
	minutes := elapsedMinutes(s)
	s.TotalStaked = math.Min(stakingCeiling, initialStaked+s.StakeRatePerMinute*minutes)
	return s
}

func viewStaking(s State) any {
	return StakingPayload{
		Prices:         copyPrices(s.Prices),
		TotalStaked:    s.TotalStaked,
		RewardRate:     s.RewardRate,
		ElapsedMinutes: elapsedMinutes(s),
	}
}

func stepStablecoins(s State, now time.Time, _ Source) State {
	// The dip follows the latest swap; a re-trigger restarts the warm-up.
	price := baselineVolatile
	s.MarketDipStarted, s.MarketDipStartedAt = false, time.Time{}
	if ev, ok := s.PendingEvents[EventSwappedForStable]; ok {
		dipStart := ev.TriggeredAt.Add(dipWarmup)
		if !now.Before(dipStart) {
			s.MarketDipStarted, s.MarketDipStartedAt = true, dipStart
			progress := math.Min(1, float64(now.Sub(dipStart))/float64(dipWindow))
			price = math.Max(dipFloor, baselineVolatile-dipDepth*progress)
		}
	}
	s.Prices[AssetVolatile] = price
	return s
}

func viewStablecoins(s State) any {
	p := StablecoinPayload{
		Prices:           copyPrices(s.Prices),
		MarketDipStarted: s.MarketDipStarted,
	}
	if s.MarketDipStarted {
		at := s.MarketDipStartedAt
		p.MarketDipStartedAt = &at
	}
	return p
}

func elapsedMinutes(s State) float64 {
	return float64(s.ElapsedTime) / float64(time.Minute)
}

func copyPrices(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
