package model

import "time"

// Snapshot is a point-in-time read of every record the resolver and the
// scheduler consume. Cooldowns and Resupplies may still contain expired
// rows that the refresh loop has not pruned yet.
type Snapshot struct {
	TakenAt             time.Time         `json:"taken_at"`
	Activities          []Activity        `json:"activities"`
	ActiveSessions      []Session         `json:"active_sessions"`
	Cooldowns           []Cooldown        `json:"cooldowns"`
	Resupplies          []Resupply        `json:"resupplies"`
	Production          []ProductionState `json:"production"`
	ActiveSellSessions  []SellSession     `json:"active_sell_sessions"`
	LastSellSessions    []SellSession     `json:"last_sell_sessions"`
	LastSafeCollections []SafeCollection  `json:"last_safe_collections"`
}

// Activity looks up a catalog entry by id.
func (s *Snapshot) Activity(id string) (Activity, bool) {
	if s == nil {
		return Activity{}, false
	}
	for _, a := range s.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// ActiveSession returns the open session of an activity, if any.
func (s *Snapshot) ActiveSession(activityID string) *Session {
	if s == nil {
		return nil
	}
	for i := range s.ActiveSessions {
		if s.ActiveSessions[i].ActivityID == activityID && s.ActiveSessions[i].IsActive() {
			return &s.ActiveSessions[i]
		}
	}
	return nil
}

// Cooldown returns the cooldown row of an activity, expired or not.
func (s *Snapshot) Cooldown(activityID string) *Cooldown {
	if s == nil {
		return nil
	}
	for i := range s.Cooldowns {
		if s.Cooldowns[i].ActivityID == activityID {
			return &s.Cooldowns[i]
		}
	}
	return nil
}

// Resupply returns the resupply row of an activity, expired or not.
func (s *Snapshot) Resupply(activityID string) *Resupply {
	if s == nil {
		return nil
	}
	for i := range s.Resupplies {
		if s.Resupplies[i].ActivityID == activityID {
			return &s.Resupplies[i]
		}
	}
	return nil
}

// Stock returns the current stock of an activity, 0 when it has no
// production row.
func (s *Snapshot) Stock(activityID string) int {
	if s == nil {
		return 0
	}
	for _, p := range s.Production {
		if p.ActivityID == activityID {
			return p.CurrentStock
		}
	}
	return 0
}

// ActiveSellSession returns the open sell session of an activity, if any.
func (s *Snapshot) ActiveSellSession(activityID string) *SellSession {
	if s == nil {
		return nil
	}
	for i := range s.ActiveSellSessions {
		if s.ActiveSellSessions[i].ActivityID == activityID && s.ActiveSellSessions[i].IsActive() {
			return &s.ActiveSellSessions[i]
		}
	}
	return nil
}

// LastSellSession returns the most recently completed sell session.
func (s *Snapshot) LastSellSession(activityID string) *SellSession {
	if s == nil {
		return nil
	}
	var last *SellSession
	for i := range s.LastSellSessions {
		ss := &s.LastSellSessions[i]
		if ss.ActivityID != activityID || ss.EndTime == nil {
			continue
		}
		if last == nil || ss.EndTime.After(*last.EndTime) {
			last = ss
		}
	}
	return last
}

// LastSafeCollection returns the most recent safe collection.
func (s *Snapshot) LastSafeCollection(activityID string) *SafeCollection {
	if s == nil {
		return nil
	}
	var last *SafeCollection
	for i := range s.LastSafeCollections {
		c := &s.LastSafeCollections[i]
		if c.ActivityID != activityID {
			continue
		}
		if last == nil || c.CollectedAt.After(last.CollectedAt) {
			last = c
		}
	}
	return last
}
