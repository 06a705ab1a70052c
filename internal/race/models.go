package race

import "time"

// RaceFlag is the flag state recorded on a heat row.
type RaceFlag int

const (
	// FlagGreen is set when the heat is created and racing is under way.
	FlagGreen RaceFlag = 0
	// FlagYellow is waved once decoder time crosses the heat end; laps
	// recorded under yellow belong to the cooldown window.
	FlagYellow RaceFlag = 1
	// FlagCheckered marks a finished heat.
	FlagCheckered RaceFlag = 2
)

func (f RaceFlag) String() string {
	switch f {
	case FlagGreen:
		return "green"
	case FlagYellow:
		return "yellow"
	case FlagCheckered:
		return "checkered"
	default:
		return "unknown"
	}
}

// Pass is one raw transponder read as delivered by the decoder. PassID is
// the decoder's own monotonically increasing passing number; ID is the local
// row identifier. Passes are immutable once inserted.
type Pass struct {
	ID          int64
	PassID      int64
	Transponder int64
	RTCTime     int64
	Strength    int64
	Hits        int64
	Flags       int64
	DecoderID   int64
	ReceivedAt  time.Time
}

// Lap is a pass the judge accepted for a heat. A pass belongs to at most one
// lap; the unique constraint on PassID is what makes reprocessing idempotent.
type Lap struct {
	ID          int64
	HeatID      int64
	PassID      int64
	Transponder int64
	RTCTime     int64
	CreatedAt   time.Time
}

// Heat is one race window. The window is fixed at creation: RTCTimeEnd is
// start plus the heat duration, RTCTimeMaxEnd adds the cooldown. LastPassID
// is zero until the heat finishes.
type Heat struct {
	ID            int64
	Finished      bool
	FirstPassID   int64
	LastPassID    int64
	RTCTimeStart  int64
	RTCTimeEnd    int64
	RTCTimeMaxEnd int64
	RaceFlag      RaceFlag
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Kart maps a transponder to a human-readable kart.
type Kart struct {
	Transponder int64
	Name        string
	Number      int64
}

// Setting is one operator-tunable key/value pair.
type Setting struct {
	Key   string
	Value string
}

// LapRow is a lap joined with its kart mapping and computed lap time for
// presentation. LapTime is zero for the first lap of a transponder in a heat.
type LapRow struct {
	Lap
	LapTime    int64
	KartName   string
	KartNumber int64
}

// Setting keys the heat engine reads. Values are stored as text; integer
// settings parse with SettingInt64.
const (
	SettingGreenFlag      = "green_flag"
	SettingHeatDuration   = "heat_duration"
	SettingHeatCooldown   = "heat_cooldown"
	SettingMinimumLapTime = "minimum_lap_time"
)

// DatabaseHealth captures diagnostic information about the timing database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	PassCount        int
	LapCount         int
	HeatCount        int
	Error            string
}
