package ipc

// StatusRequest fetches the daemon status snapshot.
type StatusRequest struct{}

// DecoderStatus reports the decoder session over IPC.
type DecoderStatus struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Connected  bool   `json:"connected"`
	SessionID  string `json:"session_id"`
	Frames     uint64 `json:"frames"`
	Dropped    uint64 `json:"dropped"`
	Reconnects uint64 `json:"reconnects"`
}

// ClockStatus reports the decoder clock over IPC. DecoderTime is in decoder
// microseconds; AgeMillis is how old the last sync is.
type ClockStatus struct {
	Synced      bool  `json:"synced"`
	DecoderTime int64 `json:"decoder_time"`
	AgeMillis   int64 `json:"age_millis"`
}

// HeatStatus reports the heat engine over IPC.
type HeatStatus struct {
	Active bool   `json:"active"`
	ID     int64  `json:"id"`
	Phase  string `json:"phase"`
}

// StatusResponse is the combined daemon status.
type StatusResponse struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	Roles        []string      `json:"roles"`
	DatabasePath string        `json:"database_path"`
	LockPath     string        `json:"lock_path"`
	GreenFlag    bool          `json:"green_flag"`
	Decoder      DecoderStatus `json:"decoder"`
	Clock        ClockStatus   `json:"clock"`
	Heat         HeatStatus    `json:"heat"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse reports the stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// DatabaseHealthRequest fetches database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports timing database health.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	PassCount        int      `json:"pass_count"`
	LapCount         int      `json:"lap_count"`
	HeatCount        int      `json:"heat_count"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
