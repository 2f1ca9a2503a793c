package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/commonprotocol/vault/internal/types"
)

// appendEventLocked stamps ev with an ID, sequence, timestamp and the post-change totals,
// and appends it to the in-memory audit log. Caller holds mu. The returned event is a
// private copy, safe to read after mu is released.
func (v *Vault) appendEventLocked(ev types.Event) *types.Event {
	v.sequence++
	ev.ID = uuid.NewString()
	ev.Sequence = v.sequence
	ev.Timestamp = v.clock().UTC()
	ev.TotalShares = v.totalShares
	ev.TotalAssets = v.totalAssetsLocked()
	if ev.Assets.IsNil() {
		ev.Assets = sdkmath.ZeroInt()
	}
	if ev.Shares.IsNil() {
		ev.Shares = sdkmath.ZeroInt()
	}
	v.events = append(v.events, ev)
	return &ev
}

// unlockAndPublish releases mu and hands ev to every sink. publishMu is acquired before mu
// is released, so sinks observe events in sequence order even under concurrent callers.
// A nil ev only releases mu.
func (v *Vault) unlockAndPublish(ctx context.Context, ev *types.Event) {
	if ev == nil || len(v.sinks) == 0 {
		v.mu.Unlock()
		return
	}
	event := *ev

	v.publishMu.Lock()
	v.mu.Unlock()
	defer v.publishMu.Unlock()

	for _, sink := range v.sinks {
		if err := sink.Record(ctx, event); err != nil {
			v.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Uint64("sequence", event.Sequence).
				Str("type", string(event.Type)).
				Msg("Event sink failed; ledger state is unaffected")
		}
	}
}

// Events returns a copy of the audit log, oldest first.
func (v *Vault) Events() []types.Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.Event, len(v.events))
	copy(out, v.events)
	return out
}
