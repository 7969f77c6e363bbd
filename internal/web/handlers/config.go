package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
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

// ConfigResponse exposes the settings that affect recognition results.
// Connection strings are never included.
type ConfigResponse struct {
	Extractor        string  `json:"extractor"`
	Metric           string  `json:"metric"`
	Tolerance        float64 `json:"tolerance"`
	TieBreak         string  `json:"tie_break"`
	EncodingsBackend string  `json:"encodings_backend"`
	LedgerBackend    string  `json:"ledger_backend"`
	CaptureFrames    int     `json:"capture_frames"`
	HNSWIndex        bool    `json:"hnsw_index"`
}

// Get returns the active configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Extractor:        h.config.Recognition.Extractor,
		Metric:           h.config.Recognition.Metric,
		Tolerance:        h.config.Recognition.Tolerance,
		TieBreak:         h.config.Recognition.TieBreak,
		EncodingsBackend: h.config.Storage.Encodings,
		LedgerBackend:    h.config.Storage.Ledger,
		CaptureFrames:    h.config.Camera.Frames,
		HNSWIndex:        h.config.Database.HNSWIndexPath != "",
	})
}
