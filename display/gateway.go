package display

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/formbot-io/formbot/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// The viewer page is served from the app's own origin, not ours.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway is the single shared websocket listener that bridges viewer
// connections to per-session framebuffer ports. Routes are keyed by access
// token so each session is independently revocable without tearing the
// listener down.
type Gateway struct {
	port   int
	logger logger.Logger

	mu     sync.Mutex
	routes map[string]int
	server *http.Server
	ln     net.Listener
}

func NewGateway(port int, log logger.Logger) *Gateway {
	return &Gateway{
		port:   port,
		logger: log,
		routes: make(map[string]int),
	}
}

// EnsureStarted starts the listener if it is not already running. Safe to
// call from every Activate; only the first call binds the port.
func (g *Gateway) EnsureStarted() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/websockify", g.handleViewer)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("gateway listen on port %d: %w", g.port, err)
	}

	g.ln = ln
	g.server = &http.Server{Handler: mux}
	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error(context.Background(), "websocket gateway stopped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	g.logger.Info(context.Background(), "websocket gateway started", map[string]interface{}{
		"port": g.port,
	})
	return nil
}

// Port returns the port the gateway listens on. When the gateway was
// started on port 0 the kernel-assigned port is returned.
func (g *Gateway) Port() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ln != nil {
		if addr, ok := g.ln.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return g.port
}

// AddRoute registers a token against a loopback framebuffer port.
func (g *Gateway) AddRoute(token string, vncPort int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[token] = vncPort
}

// RemoveRoute revokes a token. Existing proxied connections are not cut;
// the framebuffer process going away closes them.
func (g *Gateway) RemoveRoute(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.routes, token)
}

func (g *Gateway) lookupRoute(token string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	port, ok := g.routes[token]
	return port, ok
}

// Close shuts the listener down. Used at service shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	server := g.server
	g.server = nil
	g.ln = nil
	g.routes = make(map[string]int)
	g.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func (g *Gateway) handleViewer(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	vncPort, ok := g.lookupRoute(token)
	if !ok {
		http.Error(w, "unknown or revoked token", http.StatusForbidden)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn(r.Context(), "viewer upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer clientConn.Close()

	vncConn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", vncPort), 10*time.Second)
	if err != nil {
		g.logger.Error(r.Context(), "failed to reach framebuffer", map[string]interface{}{
			"error":    err.Error(),
			"vnc_port": vncPort,
		})
		return
	}
	defer vncConn.Close()

	errChan := make(chan error, 2)

	// Viewer to framebuffer.
	go func() {
		for {
			_, message, err := clientConn.ReadMessage()
			if err != nil {
				errChan <- err
				return
			}
			if _, err := vncConn.Write(message); err != nil {
				errChan <- err
				return
			}
		}
	}()

	// Framebuffer to viewer.
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := vncConn.Read(buf)
			if n > 0 {
				if werr := clientConn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					errChan <- werr
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	err = <-errChan
	if err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		g.logger.Debug(r.Context(), "viewer connection closed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
