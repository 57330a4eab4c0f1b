// Package models defines request and response bodies for the control API.
package models

import "github.com/smazurov/framegate/internal/output"

// HealthData is the body of the health check.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2025-01-27 10:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

// VersionResponse is the version endpoint response.
type VersionResponse struct {
	Body VersionData
}

// OutputStatusResponse reports the gate state.
type OutputStatusResponse struct {
	Body output.Status
}

// ToggleData is the enable flag after a toggle.
type ToggleData struct {
	Enabled bool `json:"enabled" example:"false" doc:"Whether output is enabled after the toggle"`
}

// ToggleResponse is the toggle endpoint response.
type ToggleResponse struct {
	Body ToggleData
}

// DetectionRequest signals a detection.
type DetectionRequest struct {
	Body struct {
		SequenceID int `json:"sequence_id" example:"1042" minimum:"-1" doc:"Upstream frame sequence; negative values record without calling the webhook"`
	}
}

// DetectionData acknowledges a detection.
type DetectionData struct {
	SequenceID int    `json:"sequence_id" example:"1042" doc:"Accepted sequence"`
	Recording  string `json:"recording,omitempty" doc:"Path of the active detection recording"`
}

// DetectionResponse is the detection endpoint response.
type DetectionResponse struct {
	Body DetectionData
}

// MetadataRequest carries a flat JSON object whose key order is kept.
type MetadataRequest struct {
	RawBody []byte `contentType:"application/json"`
}

// MetadataData acknowledges a queued entry.
type MetadataData struct {
	Fields int `json:"fields" example:"3" doc:"Number of fields queued"`
}

// MetadataResponse is the metadata endpoint response.
type MetadataResponse struct {
	Body MetadataData
}
