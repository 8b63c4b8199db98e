package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/castilloj/audio-transcribe/internal/app"
	"github.com/castilloj/audio-transcribe/internal/config"
	"github.com/castilloj/audio-transcribe/internal/metrics"
)

// broadcastInterval is how often pending transcripts are pushed to
// WebSocket clients.
const broadcastInterval = 100 * time.Millisecond

// writeTimeout bounds each WebSocket write so one stalled client cannot
// wedge the broadcaster.
const writeTimeout = 10 * time.Second

// wsClient serializes writes to one WebSocket connection. The command
// handler and the broadcaster both write to the same connection, which
// allows only one writer at a time.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Server is the HTTP/WebSocket control plane: start/stop capture, pull
// transcripts, enumerate devices, and stream transcription events.
type Server struct {
	application *app.App
	log         zerolog.Logger
	met         *metrics.Metrics
	srv         *http.Server
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]bool
}

// New creates the control-plane server.
func New(cfg config.ServerConfig, application *app.App, log zerolog.Logger, met *metrics.Metrics) *Server {
	s := &Server{
		application: application,
		log:         log,
		met:         met,
		upgrader: websocket.Upgrader{
			// The desktop frontend connects from its own origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]bool),
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed separately so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withMetrics("/", s.handleRoot))
	mux.HandleFunc("/status", s.withMetrics("/status", s.handleStatus))
	mux.HandleFunc("/devices", s.withMetrics("/devices", s.handleDevices))
	mux.HandleFunc("/start_capture", s.withMetrics("/start_capture", s.handleStartCapture))
	mux.HandleFunc("/stop_capture", s.withMetrics("/stop_capture", s.handleStopCapture))
	mux.HandleFunc("/get_transcription", s.withMetrics("/get_transcription", s.handleGetTranscription))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Control plane listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.broadcastLoop(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// withMetrics wraps a handler with request counting.
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(ww, r)
		s.met.HTTPRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.status)).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "audio-transcribe",
		"status": "running",
		"endpoints": map[string]string{
			"status":        "/status",
			"devices":       "/devices",
			"start":         "/start_capture",
			"stop":          "/stop_capture",
			"transcription": "/get_transcription",
			"metrics":       "/metrics",
			"websocket":     "/ws",
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.application.Status()
	s.mu.Lock()
	clients := len(s.clients)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"is_capturing":             st.IsCapturing,
		"queue_depth":              st.QueueDepth,
		"transcription_queue_size": st.PendingTranscripts,
		"device_sample_rate":       st.DeviceSampleRate,
		"target_sample_rate":       st.TargetSampleRate,
		"connected_clients":        clients,
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.application.Devices()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	if err := s.application.StartCapture(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "capture started"})
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST required"})
		return
	}
	if err := s.application.StopCapture(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "capture stopped"})
}

func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	recs := s.application.TakeTranscripts()
	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": recs, "count": len(recs)})
}

// handleWebSocket upgrades the connection, registers the client for
// transcription broadcasts, and serves control commands.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[client] = true
	s.met.WSClients.Set(float64(len(s.clients)))
	total := len(s.clients)
	s.mu.Unlock()
	s.log.Info().Int("clients", total).Msg("WebSocket client connected")

	client.writeJSON(map[string]any{
		"type": "status",
		"data": map[string]any{
			"is_capturing": s.application.IsCapturing(),
			"message":      "connected",
		},
	})

	defer s.dropClient(client)
	for {
		var msg struct {
			Command string `json:"command"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		response := map[string]any{"type": "response", "command": msg.Command}
		switch msg.Command {
		case "start_capture":
			if err := s.application.StartCapture(); err != nil {
				response["data"] = map[string]any{"success": false, "message": err.Error()}
			} else {
				response["data"] = map[string]any{"success": true, "message": "capture started"}
			}
		case "stop_capture":
			if err := s.application.StopCapture(); err != nil {
				response["data"] = map[string]any{"success": false, "message": err.Error()}
			} else {
				response["data"] = map[string]any{"success": true, "message": "capture stopped"}
			}
		case "get_status":
			st := s.application.Status()
			response["data"] = map[string]any{
				"is_capturing": st.IsCapturing,
				"queue_size":   st.PendingTranscripts,
			}
		default:
			response["data"] = map[string]any{"success": false, "message": "unknown command"}
		}

		if err := client.writeJSON(response); err != nil {
			return
		}
	}
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.met.WSClients.Set(float64(len(s.clients)))
	total := len(s.clients)
	s.mu.Unlock()
	client.conn.Close()
	s.log.Info().Int("clients", total).Msg("WebSocket client disconnected")
}

// broadcastLoop pushes finished transcripts to every connected client.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		hasClients := len(s.clients) > 0
		s.mu.Unlock()
		if !hasClients {
			continue
		}

		for _, rec := range s.application.TakeTranscripts() {
			s.broadcast(map[string]any{
				"type":      "transcription",
				"data":      rec,
				"timestamp": rec.Timestamp.Unix(),
			})
		}
	}
}

// broadcast writes one message to every registered client. The client list
// is snapshotted first so a slow write never holds the registry lock.
func (s *Server) broadcast(message map[string]any) {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			s.log.Warn().Err(err).Msg("Dropping unresponsive WebSocket client")
			s.dropClient(c)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
