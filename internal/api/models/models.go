package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Modified  bool   `json:"modified" doc:"Built from a working tree with uncommitted changes"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Log models
type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"1042" doc:"Sequence number, increasing in write order"`
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Record time"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"acq" doc:"Logging module"`
	Message    string         `json:"message" example:"Acquisition started" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntryData `json:"entries" doc:"Buffered log records, oldest first"`
		Count   int            `json:"count" example:"42" doc:"Number of records"`
		LastSeq uint64         `json:"last_seq" example:"1042" doc:"Newest sequence number in the buffer, pass as after to poll"`
	}
}

type LogsRequest struct {
	Module string `query:"module" example:"acq" doc:"Only return records from this module"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to return"`
	After  uint64 `query:"after" doc:"Only return records with a higher sequence number"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" doc:"Return at most this many of the newest matches"`
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Effective level per module"`
	}
}

type LogLevelRequest struct {
	Module string `path:"module" example:"acq" doc:"Logging module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
