package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonprotocol/vault/internal/types"
)

// value returns the gauge or counter value of the series name{labels}.
func value(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func event(seq uint64, typ types.EventType, strategy string, assets, totalShares, totalAssets int64) types.Event {
	return types.Event{
		Sequence:    seq,
		Type:        typ,
		Strategy:    strategy,
		Assets:      sdkmath.NewInt(assets),
		Shares:      sdkmath.ZeroInt(),
		TotalShares: sdkmath.NewInt(totalShares),
		TotalAssets: sdkmath.NewInt(totalAssets),
	}
}

func TestNew_RejectsPrecision(t *testing.T) {
	_, err := New(-1, nil)
	assert.Error(t, err)
	_, err = New(19, nil)
	assert.Error(t, err)
}

func TestCollector_TracksLedger(t *testing.T) {
	c, err := New(2, prometheus.Labels{"symbol": "cmUSDC"})
	require.NoError(t, err)
	ctx := context.Background()
	labels := map[string]string{"symbol": "cmUSDC"}

	assert.Equal(t, 1.0, value(t, c, "vault_exchange_rate", labels))

	// Amounts below are base units with two decimals: 500000 == 5000.00
	require.NoError(t, c.Record(ctx, event(1, types.EventDeposit, "", 500000, 500000, 500000)))
	require.NoError(t, c.Record(ctx, event(2, types.EventStrategyRebalanced, "Aave", 250000, 500000, 500000)))
	require.NoError(t, c.Record(ctx, event(3, types.EventHarvest, "", 5000, 500000, 505000)))
	require.NoError(t, c.Record(ctx, event(4, types.EventStrategyUnwound, "Aave", 50000, 500000, 505000)))

	assert.Equal(t, 5000.0, value(t, c, "vault_total_shares", labels))
	assert.Equal(t, 5050.0, value(t, c, "vault_total_assets", labels))
	assert.Equal(t, 2000.0, value(t, c, "vault_allocated_assets", labels))
	assert.Equal(t, 3050.0, value(t, c, "vault_idle_assets", labels))
	assert.InDelta(t, 1.01, value(t, c, "vault_exchange_rate", labels), 1e-12)
	assert.Equal(t, 4.0, value(t, c, "vault_last_event_sequence", labels))

	assert.Equal(t, 2000.0, value(t, c, "vault_strategy_allocation", map[string]string{"strategy": "Aave"}))
	assert.Equal(t, 1.0, value(t, c, "vault_events_total", map[string]string{"type": "DEPOSIT"}))
	assert.Equal(t, 1.0, value(t, c, "vault_events_total", map[string]string{"type": "HARVEST"}))
	assert.Equal(t, 5000.0, value(t, c, "vault_asset_volume_total", map[string]string{"type": "DEPOSIT"}))
	assert.Equal(t, 50.0, value(t, c, "vault_asset_volume_total", map[string]string{"type": "HARVEST"}))
}

func TestCollector_EmptyVaultRateIsOne(t *testing.T) {
	c, err := New(0, nil)
	require.NoError(t, err)

	require.NoError(t, c.Record(context.Background(), event(1, types.EventDeposit, "", 10, 10, 10)))
	require.NoError(t, c.Record(context.Background(), event(2, types.EventWithdraw, "", 10, 0, 0)))

	assert.Equal(t, 1.0, value(t, c, "vault_exchange_rate", nil))
	assert.Equal(t, 0.0, value(t, c, "vault_total_assets", nil))
	assert.Equal(t, 10.0, value(t, c, "vault_asset_volume_total", map[string]string{"type": "WITHDRAW"}))
}

func TestHandler_ServesExposition(t *testing.T) {
	c, err := New(0, nil)
	require.NoError(t, err)
	require.NoError(t, c.Record(context.Background(), event(1, types.EventDeposit, "", 1000, 1000, 1000)))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "vault_total_assets 1000")
	assert.Contains(t, string(body), `vault_events_total{type="DEPOSIT"} 1`)
}
