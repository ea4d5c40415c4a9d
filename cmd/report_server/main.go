package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/OriD-19/perf_overlay/aggregator"
	"github.com/OriD-19/perf_overlay/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tooling, any origin
	},
}

type server struct {
	log *zap.Logger
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Info("websocket connection established")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Info("websocket connection closed", zap.Error(err))
			return
		}

		var report aggregator.WindowReport
		if err := json.Unmarshal(message, &report); err != nil {
			log.Warn("undecodable message", zap.Error(err), zap.Int("bytes", len(message)))
		} else {
			log.Info("window report",
				zap.String("agent_id", report.AgentID),
				zap.Time("window_start", report.WindowStart),
				zap.Time("window_end", report.WindowEnd),
				zap.Int("samples", report.SampleCount),
				zap.Float64("fps", report.Metrics.FPS),
				zap.Float64("cpu_ms", report.Metrics.CPUMs),
				zap.Float64("gpu_ms", report.Metrics.GPUMs),
				zap.Float64("p50_frame_ms", report.P50FrameMs),
				zap.Float64("p95_frame_ms", report.P95FrameMs),
				zap.Float64("p99_frame_ms", report.P99FrameMs),
			)
		}

		ack := map[string]string{
			"status":    "received",
			"timestamp": time.Now().Format(time.RFC3339),
		}
		if err := conn.WriteJSON(ack); err != nil {
			log.Warn("write error", zap.Error(err))
			return
		}
	}
}

func httpHandler(s *server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring", s.handleWebSocket)
	return mux
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	level := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log, err := logger.New(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logger:", err)
		os.Exit(1)
	}
	defer logger.Flush(log.Logger)

	s := &server{log: log.Logger}

	log.Logger.Info("report server listening", zap.String("addr", *addr), zap.String("path", "/monitoring"))
	if err := http.ListenAndServe(*addr, httpHandler(s)); err != nil {
		log.Logger.Fatal("server error", zap.Error(err))
	}
}
