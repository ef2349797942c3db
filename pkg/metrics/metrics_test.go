package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestDecimalToFloat64(t *testing.T) {
	units, ok := new(big.Int).SetString("12500000000000000000", 10) // 12.5 tokens
	if !ok {
		t.Fatal("bad test constant")
	}
	got := DecimalToFloat64(decimal.NewFromBigInt(units, -18))
	if got != 12.5 {
		t.Errorf("expected 12.5, got %v", got)
	}
	if got := DecimalToFloat64(decimal.Zero); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestRecordBet(t *testing.T) {
	bm := NewBettingMetrics()

	bm.RecordBet("agree", "success", 12.5)
	bm.RecordBet("agree", "success", 0) // failed validation, no amount observed
	bm.RecordBet("disagree", "failed", 0)

	if got := testutil.ToFloat64(bm.BetsTotal.WithLabelValues("agree", "success")); got != 2 {
		t.Errorf("expected 2 agree/success bets, got %v", got)
	}
	if got := testutil.ToFloat64(bm.BetsTotal.WithLabelValues("disagree", "failed")); got != 1 {
		t.Errorf("expected 1 disagree/failed bet, got %v", got)
	}
}
