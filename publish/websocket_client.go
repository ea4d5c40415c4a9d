package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/OriD-19/perf_overlay/aggregator"
)

// WebSocketClient streams window reports to a monitoring server
type WebSocketClient struct {
	conn           *websocket.Conn
	serverURL      string
	connected      bool
	mutex          sync.RWMutex
	sendChannel    chan *aggregator.WindowReport
	done           chan struct{}
	reconnectDelay time.Duration
	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	agentID        string
	log            *zap.Logger
	stopReconnect  context.CancelFunc
}

// NewWebSocketClient creates a client; call Connect to dial the server
func NewWebSocketClient(serverURL, agentID string, log *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		serverURL:      serverURL,
		sendChannel:    make(chan *aggregator.WindowReport, 100),
		reconnectDelay: 5 * time.Second,
		maxMessageSize: 512,
		writeWait:      10 * time.Second,
		pongWait:       60 * time.Second,
		pingPeriod:     54 * time.Second, // must be less than pongWait
		agentID:        agentID,
		log:            log,
	}
}

// Connect dials the server and starts the read and write pumps
func (wsc *WebSocketClient) Connect() error {
	wsc.mutex.Lock()
	defer wsc.mutex.Unlock()

	if wsc.connected {
		return nil
	}

	u, err := url.Parse(wsc.serverURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}

	wsc.log.Info("connecting to websocket server", zap.String("url", wsc.serverURL))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsc.serverURL, err)
	}

	wsc.conn = conn
	wsc.connected = true
	wsc.done = make(chan struct{})

	conn.SetReadLimit(wsc.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsc.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsc.pongWait))
		return nil
	})

	go wsc.readPump(conn, wsc.done)
	go wsc.writePump(conn, wsc.done)

	wsc.log.Info("connected to websocket server")
	return nil
}

// Disconnect closes the current connection
func (wsc *WebSocketClient) Disconnect() {
	wsc.mutex.Lock()
	defer wsc.mutex.Unlock()

	if !wsc.connected {
		return
	}

	close(wsc.done)
	if wsc.conn != nil {
		wsc.conn.Close()
	}

	wsc.connected = false
	wsc.log.Info("disconnected from websocket server")
}

// Close stops the reconnect loop and disconnects
func (wsc *WebSocketClient) Close() error {
	wsc.mutex.Lock()
	stop := wsc.stopReconnect
	wsc.stopReconnect = nil
	wsc.mutex.Unlock()

	if stop != nil {
		stop()
	}
	wsc.Disconnect()
	return nil
}

// IsConnected returns the connection status
func (wsc *WebSocketClient) IsConnected() bool {
	wsc.mutex.RLock()
	defer wsc.mutex.RUnlock()
	return wsc.connected
}

// Publish queues a report for sending without blocking the caller.
// When the queue is full the report is dropped and ErrQueueFull returned.
func (wsc *WebSocketClient) Publish(_ context.Context, report *aggregator.WindowReport) error {
	if report == nil {
		return nil
	}

	// reports are shared with other sinks
	r := *report
	if r.AgentID == "" {
		r.AgentID = wsc.agentID
	}

	select {
	case wsc.sendChannel <- &r:
		return nil
	default:
		return ErrQueueFull
	}
}

// markDisconnected clears the connection state if conn is still current
func (wsc *WebSocketClient) markDisconnected(conn *websocket.Conn) {
	wsc.mutex.Lock()
	defer wsc.mutex.Unlock()

	conn.Close()
	if wsc.conn == conn && wsc.connected {
		close(wsc.done)
		wsc.connected = false
	}
}

// readPump drains server messages so control frames are processed
func (wsc *WebSocketClient) readPump(conn *websocket.Conn, done <-chan struct{}) {
	defer wsc.markDisconnected(conn)

	for {
		select {
		case <-done:
			return
		default:
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wsc.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsc.pongWait))
	}
}

// writePump is the only writer on conn
func (wsc *WebSocketClient) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsc.pingPeriod)
	defer func() {
		ticker.Stop()
		wsc.markDisconnected(conn)
	}()

	for {
		select {
		case <-done:
			return
		case report := <-wsc.sendChannel:
			if err := wsc.writeReport(conn, report); err != nil {
				wsc.log.Warn("error sending report", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsc.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeReport serializes and sends one report
func (wsc *WebSocketClient) writeReport(conn *websocket.Conn, report *aggregator.WindowReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(wsc.writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// StartReconnectLoop redials in the background whenever the connection is
// down, until ctx is cancelled or Close is called.
func (wsc *WebSocketClient) StartReconnectLoop(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	wsc.mutex.Lock()
	if wsc.stopReconnect != nil {
		wsc.stopReconnect()
	}
	wsc.stopReconnect = cancel
	wsc.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(wsc.reconnectDelay)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if wsc.IsConnected() {
				continue
			}

			wsc.log.Info("attempting to reconnect")
			if err := wsc.Connect(); err != nil {
				wsc.log.Warn("reconnection failed", zap.Error(err))
			}
		}
	}()
}
