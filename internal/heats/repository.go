package heats

import (
	"context"

	"trackside/internal/race"
)

// Repository is the slice of the race store the heat engine depends on.
// *race.Store satisfies it.
type Repository interface {
	GreenFlag(ctx context.Context) (bool, error)
	SettingInt64(ctx context.Context, key string, fallback int64) (int64, error)

	FirstPassAfter(ctx context.Context, minPassID, afterRTC int64) (*race.Pass, error)
	UnprocessedPasses(ctx context.Context, firstPassID, maxEndRTC int64) ([]*race.Pass, error)

	InsertLap(ctx context.Context, lap *race.Lap) (bool, error)
	LastAcceptedLapRTC(ctx context.Context, heatID, transponder int64) (int64, bool, error)
	LapCount(ctx context.Context, heatID int64) (int, error)
	MaxLapPassID(ctx context.Context) (int64, error)
	MaxLapPassIDForHeat(ctx context.Context, heatID int64) (int64, error)
	HeatStarters(ctx context.Context, heatID int64) (int, error)
	HeatFinishers(ctx context.Context, heatID, rtcTimeEnd int64) (int, error)

	ActiveHeat(ctx context.Context) (*race.Heat, error)
	CreateHeat(ctx context.Context, firstPassID, rtcTimeStart, rtcTimeEnd, rtcTimeMaxEnd int64) (*race.Heat, error)
	UpdateHeat(ctx context.Context, heat *race.Heat) error
}

// Clock supplies decoder time in microseconds. timesync.Cell satisfies it.
type Clock interface {
	Now() (int64, bool)
}
