package scenario

import (
	"context"
	"math"
	"testing"

	"github.com/okian/duelarena/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEnforce(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}

	Convey("Given states with out-of-bound values", t, func() {
		e := NewEngine()
		ctx := context.Background()

		Convey("Then staking totals are clamped to the ceiling", func() {
			s := State{TopicID: TopicStaking, TotalStaked: 2_000_000, Prices: defaultPrices()}
			e.enforce(ctx, &s)
			So(s.TotalStaked, ShouldEqual, stakingCeiling)
		})

		Convey("Then the dipping asset is held at its floor", func() {
			s := State{TopicID: TopicStablecoins, Prices: map[string]float64{AssetVolatile: 650, AssetStable: math.NaN()}}
			e.enforce(ctx, &s)
			So(s.Prices[AssetVolatile], ShouldEqual, dipFloor)
			So(s.Prices[AssetStable], ShouldEqual, 0.0)
		})

		Convey("Then trade amounts are bounded", func() {
			s := State{TopicID: TopicLiquidityPools, Prices: defaultPrices(), LastTrade: &Trade{Amount: 12.5}}
			e.enforce(ctx, &s)
			So(s.LastTrade.Amount, ShouldEqual, maxTradeAmount)
		})
	})
}
