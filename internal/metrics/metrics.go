/*

This file contains the prometheus collector for the vault. It is an EventSink: every
committed event updates the ledger gauges and the operation counters, so the exported
values track the ledger without polling it.

Amounts are exported in whole units of the underlying asset (base units scaled down by
the asset precision).

*/

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/types"
)

const namespace = "vault"

// Collector exports vault state to prometheus.
type Collector struct {
	precision int64
	registry  *prometheus.Registry
	logger    zerolog.Logger

	totalShares  prometheus.Gauge
	totalAssets  prometheus.Gauge
	idleAssets   prometheus.Gauge
	allocated    prometheus.Gauge
	exchangeRate prometheus.Gauge
	strategy     *prometheus.GaugeVec
	events       *prometheus.CounterVec
	volume       *prometheus.CounterVec
	lastSequence prometheus.Gauge

	// mu serialises updates that read back running totals.
	mu          sync.Mutex
	allocations map[string]sdkmath.Int
	allocTotal  sdkmath.Int
}

// New creates a collector for a vault whose asset has the given precision and registers
// it on a fresh registry. constLabels (e.g. the vault symbol) are attached to every series.
func New(precision int, constLabels prometheus.Labels) (*Collector, error) {
	if precision < 0 || precision > sdkmath.LegacyPrecision {
		return nil, fmt.Errorf("metrics precision must be between 0 and %d, got %d", sdkmath.LegacyPrecision, precision)
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	c := &Collector{
		precision:    int64(precision),
		registry:     prometheus.NewRegistry(),
		logger:       logger.GetForComponent("metrics"),
		totalShares:  gauge("total_shares", "Vault shares outstanding, in whole share units."),
		totalAssets:  gauge("total_assets", "Assets under management: idle custody plus strategy allocations."),
		idleAssets:   gauge("idle_assets", "Assets held in custody and not allocated to any strategy."),
		allocated:    gauge("allocated_assets", "Sum of all strategy allocations."),
		exchangeRate: gauge("exchange_rate", "Asset value of one share."),
		lastSequence: gauge("last_event_sequence", "Sequence number of the last event observed."),
		strategy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "strategy_allocation", Help: "Principal currently allocated per strategy.", ConstLabels: constLabels,
		}, []string{"strategy"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Committed ledger events by type.", ConstLabels: constLabels,
		}, []string{"type"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "asset_volume_total", Help: "Assets moved by deposits, withdrawals and harvests.", ConstLabels: constLabels,
		}, []string{"type"}),
		allocations: make(map[string]sdkmath.Int),
		allocTotal:  sdkmath.ZeroInt(),
	}

	c.exchangeRate.Set(1)

	collectors := []prometheus.Collector{
		c.totalShares, c.totalAssets, c.idleAssets, c.allocated, c.exchangeRate,
		c.lastSequence, c.strategy, c.events, c.volume,
		prometheus.NewGoCollector(),
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return c, nil
}

// Registry returns the registry the collector's series live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Record updates the series from a committed event.
func (c *Collector) Record(_ context.Context, ev types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events.WithLabelValues(string(ev.Type)).Inc()
	c.lastSequence.Set(float64(ev.Sequence))

	switch ev.Type {
	case types.EventDeposit, types.EventWithdraw, types.EventHarvest:
		c.volume.WithLabelValues(string(ev.Type)).Add(c.units(ev.Assets))
	case types.EventStrategyRebalanced:
		c.adjustStrategyLocked(ev.Strategy, ev.Assets)
	case types.EventStrategyUnwound:
		c.adjustStrategyLocked(ev.Strategy, orZero(ev.Assets).Neg())
	}

	totalAssets := orZero(ev.TotalAssets)
	totalShares := orZero(ev.TotalShares)

	c.totalShares.Set(c.units(totalShares))
	c.totalAssets.Set(c.units(totalAssets))
	c.allocated.Set(c.units(c.allocTotal))
	c.idleAssets.Set(c.units(totalAssets.Sub(c.allocTotal)))
	c.exchangeRate.Set(exchangeRate(totalAssets, totalShares))
	return nil
}

func (c *Collector) adjustStrategyLocked(name string, delta sdkmath.Int) {
	if delta.IsNil() {
		return
	}
	current, ok := c.allocations[name]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	current = current.Add(delta)
	c.allocations[name] = current
	c.allocTotal = c.allocTotal.Add(delta)
	c.strategy.WithLabelValues(name).Set(c.units(current))
}

// units converts a base-unit amount into whole units of the asset.
func (c *Collector) units(amount sdkmath.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, err := sdkmath.LegacyNewDecFromIntWithPrec(amount, c.precision).Float64()
	if err != nil {
		c.logger.Error().Err(err).Stringer("amount", amount).Msg("Amount does not fit a float64")
		return 0
	}
	return f
}

func exchangeRate(totalAssets, totalShares sdkmath.Int) float64 {
	if !totalShares.IsPositive() {
		return 1
	}
	rate := sdkmath.LegacyNewDecFromInt(totalAssets).QuoTruncate(sdkmath.LegacyNewDecFromInt(totalShares))
	f, err := rate.Float64()
	if err != nil {
		return 0
	}
	return f
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
