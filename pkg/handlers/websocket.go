package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/matchmaking"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/websocket"
)

type WebSocketHandler struct {
	wsManager *websocket.Manager
	logger    *zap.Logger
}

func NewWebSocketHandler(wsManager *websocket.Manager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		logger:    logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("WebSocket connection request", zap.String("remoteAddr", r.RemoteAddr))
	h.wsManager.HandleConnection(w, r)
}

func (h *WebSocketHandler) CloseConnections(ctx context.Context) error {
	h.logger.Info("Closing all WebSocket connections")
	return h.wsManager.Close(ctx)
}

type StatsProvider interface {
	Stats() (matchmaking.Counts, error)
}

type HealthCheckHandler struct {
	stats  StatsProvider
	logger *zap.Logger
}

func NewHealthCheckHandler(stats StatsProvider, logger *zap.Logger) *HealthCheckHandler {
	return &HealthCheckHandler{
		stats:  stats,
		logger: logger,
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Clients   int    `json:"clients"`
	Available int    `json:"available"`
	Pairs     int    `json:"pairs"`
}

func (h *HealthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.Stats()
	if err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}

	h.logger.Debug("Health check",
		zap.Int("clients", counts.Total),
		zap.Int("available", counts.Available))

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Clients:   counts.Total,
		Available: counts.Available,
		Pairs:     counts.Pairs,
	})
}

// ICEHandler serves the ICE server list clients should use for their
// peer connections.
type ICEHandler struct {
	servers []webrtc.ICEServer
}

func NewICEHandler(servers []webrtc.ICEServer) *ICEHandler {
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	return &ICEHandler{servers: servers}
}

func (h *ICEHandler) HandleICEServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.servers)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
