package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Command is an instruction from a connected client.
type Command struct {
	Command string                 `json:"command"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// CommandResult is the gateway's reply to one command.
type CommandResult struct {
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CommandHandler executes one named command.
type CommandHandler func(ctx context.Context, cmd Command) (interface{}, error)

// Gateway serves the websocket endpoint: events out, commands in.
type Gateway struct {
	addr     string
	bus      *EventBus
	clock    *clock.Service
	upgrader websocket.Upgrader
	server   *http.Server

	mu         sync.Mutex
	listenAddr string
	clients    map[*websocket.Conn]*sync.Mutex
	handlers   map[string]CommandHandler
}

func NewGateway(cfg config.ShellConfig, bus *EventBus, clk *clock.Service) *Gateway {
	return &Gateway{
		addr:  fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		bus:   bus,
		clock: clk,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local-only surface; the listen address is the boundary.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:  map[*websocket.Conn]*sync.Mutex{},
		handlers: map[string]CommandHandler{},
	}
}

// RegisterCommand wires a named command to its handler.
func (g *Gateway) RegisterCommand(name string, handler CommandHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[name] = handler
}

// Start listens and pumps bus events to clients until ctx ends.
func (g *Gateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		g.handleConn(ctx, w, r)
	})

	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("shell gateway listen: %w", err)
	}
	g.server = &http.Server{Handler: mux}
	g.mu.Lock()
	g.listenAddr = ln.Addr().String()
	g.mu.Unlock()

	go g.pump(ctx)
	go func() {
		<-ctx.Done()
		_ = g.server.Close()
	}()

	logger.InfoCF("shell", "gateway listening", map[string]interface{}{"addr": ln.Addr().String()})
	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("shell", "gateway serve failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

// Broadcast sends one event to every connected client immediately,
// bypassing the bus.
func (g *Gateway) Broadcast(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = g.clock.Now()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}

	g.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(g.clients))
	for c, wm := range g.clients {
		conns[c] = wm
	}
	g.mu.Unlock()

	for c, wm := range conns {
		if err := writeLocked(c, wm, raw); err != nil {
			g.drop(c)
		}
	}
}

// writeLocked serializes writes per connection.
func writeLocked(conn *websocket.Conn, wm *sync.Mutex, raw []byte) error {
	wm.Lock()
	defer wm.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// Addr reports the bound listen address once started.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listenAddr
}

// ClientCount reports connected dashboards.
func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

func (g *Gateway) pump(ctx context.Context) {
	for {
		ev, ok := g.bus.Consume(ctx)
		if !ok {
			return
		}
		g.Broadcast(ev)
	}
}

func (g *Gateway) handleConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("shell", "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	wm := &sync.Mutex{}
	g.mu.Lock()
	g.clients[conn] = wm
	g.mu.Unlock()
	logger.DebugCF("shell", "client connected", map[string]interface{}{"remote": conn.RemoteAddr().String()})

	defer g.drop(conn)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			g.reply(conn, wm, CommandResult{OK: false, Error: "malformed command"})
			continue
		}
		g.reply(conn, wm, g.dispatch(ctx, cmd))
	}
}

func (g *Gateway) dispatch(ctx context.Context, cmd Command) CommandResult {
	g.mu.Lock()
	handler, ok := g.handlers[cmd.Command]
	g.mu.Unlock()
	if !ok {
		return CommandResult{Command: cmd.Command, OK: false, Error: "unknown command"}
	}

	result, err := handler(ctx, cmd)
	if err != nil {
		logger.WarnCF("shell", "command failed", map[string]interface{}{
			"command": cmd.Command,
			"error":   err.Error(),
		})
		return CommandResult{Command: cmd.Command, OK: false, Error: err.Error()}
	}
	return CommandResult{Command: cmd.Command, OK: true, Result: result}
}

func (g *Gateway) reply(conn *websocket.Conn, wm *sync.Mutex, res CommandResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	_ = writeLocked(conn, wm, raw)
}

func (g *Gateway) drop(conn *websocket.Conn) {
	g.mu.Lock()
	_, present := g.clients[conn]
	delete(g.clients, conn)
	g.mu.Unlock()
	if present {
		_ = conn.Close()
	}
}
