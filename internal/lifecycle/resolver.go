// Package lifecycle resolves what an activity offers the user at a given
// instant from its catalog entry and the current record snapshot.
package lifecycle

import (
	"time"

	"gta-grind-tracker/internal/model"
)

// Resolve returns the state of activity a at now. Rules are evaluated in
// a fixed order and the first match wins:
//
//  1. a pending session confirmation
//  2. an open session
//  3. a cooldown that has not expired
//  4. a resupply that has not expired
//  5. passive activities without a resupply cycle (safe or sell)
//  6. passive activities with a resupply cycle (sell, stock, resupply)
//  7. idle
//
// Expired cooldown and resupply rows are ignored; pruning them is the
// refresh loop's job. Resolve never mutates its arguments.
func Resolve(a model.Activity, now time.Time, snap *model.Snapshot, pending Pending) ResolvedState {
	if pending.Session != nil {
		return ResolvedState{
			Kind:     KindAwaitingSessionConfirmation,
			Action:   ActionConfirmSession,
			RecordID: pending.Session.RecordID,
			Elapsed:  DisplayDuration(model.MinutesToDuration(pending.Session.ElapsedMinutes)),
		}
	}

	if s := snap.ActiveSession(a.ID); s != nil {
		return ResolvedState{
			Kind:        KindSessionActive,
			Action:      ActionStopSession,
			RecordID:    s.ID,
			Elapsed:     DisplayDuration(now.Sub(s.StartTime)),
			ShowElapsed: a.Category != model.CategoryHeist,
		}
	}

	if c := snap.Cooldown(a.ID); c != nil && c.EndTime.After(now) {
		return ResolvedState{
			Kind:      KindCooldownWaiting,
			Action:    ActionNone,
			Remaining: DisplayDuration(c.EndTime.Sub(now)),
		}
	}

	if r := snap.Resupply(a.ID); r != nil && r.EndTime.After(now) {
		return ResolvedState{
			Kind:      KindResupplyWaiting,
			Action:    ActionNone,
			Remaining: DisplayDuration(r.EndTime.Sub(now)),
		}
	}

	if a.Passive && a.ResupplyMin <= 0 {
		return resolvePassive(a, now, snap)
	}

	if a.HasResupplyCycle() {
		return resolveProduction(a, now, snap, pending)
	}

	return ResolvedState{Kind: KindIdle, Action: ActionStartSession}
}

func resolvePassive(a model.Activity, now time.Time, snap *model.Snapshot) ResolvedState {
	if !IsSafe(a) {
		return ResolvedState{Kind: KindSellReady, Action: ActionStartSell, Payout: a.AvgPayout}
	}

	if last := snap.LastSafeCollection(a.ID); last != nil && a.AvgTimeMin > 0 {
		readyAt := last.CollectedAt.Add(model.MinutesToDuration(a.AvgTimeMin))
		if readyAt.After(now) {
			return ResolvedState{
				Kind:      KindSafeFilling,
				Action:    ActionNone,
				Remaining: DisplayDuration(readyAt.Sub(now)),
				Payout:    a.AvgPayout,
			}
		}
	}

	return ResolvedState{Kind: KindSafeReady, Action: ActionCollectSafe, Payout: a.AvgPayout}
}

func resolveProduction(a model.Activity, now time.Time, snap *model.Snapshot, pending Pending) ResolvedState {
	stock := snap.Stock(a.ID)
	capacity := a.StockCapacity()

	state := ResolvedState{Stock: stock, Capacity: capacity, Payout: a.AvgPayout}

	switch ss := snap.ActiveSellSession(a.ID); {
	case pending.Sell != nil:
		state.Kind = KindSellAwaitingConfirmation
		state.Action = ActionConfirmSell
		state.RecordID = pending.Sell.RecordID
		state.Elapsed = DisplayDuration(model.MinutesToDuration(pending.Sell.ElapsedMinutes))
	case ss != nil:
		state.Kind = KindSellActive
		state.Action = ActionStopSell
		state.RecordID = ss.ID
		state.Elapsed = DisplayDuration(now.Sub(ss.StartTime))
		state.ShowElapsed = true
	case stock >= capacity:
		state.Kind = KindStockFull
		state.Action = ActionStartSell
	default:
		state.Kind = KindResupplying
		state.Action = ActionStartResupply
	}
	return state
}
