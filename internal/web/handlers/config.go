package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Branch         string   `json:"branch"`
	BackendURL     string   `json:"backend_url"`
	CameraSource   string   `json:"camera_source"`
	CameraSources  []string `json:"camera_sources"`
	FrameWidth     int      `json:"frame_width"`
	FrameHeight    int      `json:"frame_height"`
	SettleDelayMs  int64    `json:"settle_delay_ms"`
	NoMatchResetMs int64    `json:"no_match_reset_ms"`
	Journal        string   `json:"journal"`
}

// Get returns the kiosk configuration the panel needs. Secrets are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Branch:         h.config.Backend.Branch,
		BackendURL:     h.config.Backend.URL,
		CameraSource:   h.config.Camera.Source,
		CameraSources:  camera.Sources(),
		FrameWidth:     h.config.Capture.FrameWidth,
		FrameHeight:    h.config.Capture.FrameHeight,
		SettleDelayMs:  h.config.Capture.SettleDelay.Milliseconds(),
		NoMatchResetMs: h.config.Capture.NoMatchReset.Milliseconds(),
		Journal:        database.BackendName(),
	}

	respondJSON(w, http.StatusOK, response)
}
