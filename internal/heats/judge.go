package heats

import (
	"context"

	"trackside/internal/race"
)

// Judge decides whether a pass counts as a lap for one heat. It keeps the
// last accepted lap time per transponder and remembers which passes it
// rejected, so re-polling the same window never re-evaluates or re-logs a
// verdict. State is seeded lazily from the repository, which makes the same
// decisions come out of a restart.
type Judge struct {
	repo     Repository
	heatID   int64
	minLap   int64
	lastLap  map[int64]int64
	rejected map[int64]struct{}
}

// NewJudge builds a judge for a heat. minLapMicros is the minimum accepted
// lap time in decoder microseconds.
func NewJudge(repo Repository, heatID, minLapMicros int64) *Judge {
	return &Judge{
		repo:     repo,
		heatID:   heatID,
		minLap:   minLapMicros,
		lastLap:  make(map[int64]int64),
		rejected: make(map[int64]struct{}),
	}
}

// Skipped reports whether the judge already rejected this pass.
func (j *Judge) Skipped(passID int64) bool {
	_, ok := j.rejected[passID]
	return ok
}

// Evaluate decides whether a pass completes a valid lap. A transponder's
// first crossing in a heat always counts; later crossings must come at least
// the minimum lap time after the last accepted one. Rejected pass IDs are
// remembered. Evaluate does not advance the accepted-lap state; call Commit
// once the lap is persisted, so an insert failure leaves the judge able to
// reach the same verdict on the next poll.
func (j *Judge) Evaluate(ctx context.Context, pass *race.Pass) (bool, error) {
	if j.Skipped(pass.PassID) {
		return false, nil
	}
	last, known := j.lastLap[pass.Transponder]
	if !known {
		rtc, found, err := j.repo.LastAcceptedLapRTC(ctx, j.heatID, pass.Transponder)
		if err != nil {
			return false, err
		}
		if found {
			last, known = rtc, true
			j.lastLap[pass.Transponder] = rtc
		}
	}
	if known && pass.RTCTime-last < j.minLap {
		j.rejected[pass.PassID] = struct{}{}
		return false, nil
	}
	return true, nil
}

// Commit records a persisted lap as the transponder's latest.
func (j *Judge) Commit(pass *race.Pass) {
	j.lastLap[pass.Transponder] = pass.RTCTime
}
