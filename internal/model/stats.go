package model

import "time"

// SafeCollectMinutes is the time credited to stats for collecting a safe.
const SafeCollectMinutes = 0.0167

// ActivityStats is the dollars-per-minute rollup of an activity.
type ActivityStats struct {
	ActivityID   string     `json:"activity_id"`
	TotalMoney   int64      `json:"total_money"`
	TotalTime    float64    `json:"total_time"` // minutes
	SessionCount int        `json:"session_count"`
	AvgDPM       float64    `json:"avg_dpm"`
	LastSession  *time.Time `json:"last_session,omitempty"`
}

// Add folds one completed run into the rollup.
func (s *ActivityStats) Add(money int64, minutes float64, at time.Time) {
	s.TotalMoney += money
	s.TotalTime += minutes
	s.SessionCount++
	s.AvgDPM = DPM(s.TotalMoney, s.TotalTime)
	t := at
	s.LastSession = &t
}

// DPM returns money per minute, or 0 when no time has been recorded.
func DPM(money int64, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return float64(money) / minutes
}
