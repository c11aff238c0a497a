package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleChatWS upgrades to a WebSocket that carries chat turns: each text
// frame is a ChatRequest and is answered by one ChatResponse or
// ErrorResponse frame. Turns on one connection run in order.
func (g *Gateway) handleChatWS() http.HandlerFunc {
	allowAny := g.config.allowAnyOrigin()
	patterns := originPatterns(g.config.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		// The server-wide deadlines would otherwise cut long-lived sockets.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns:     patterns,
			InsecureSkipVerify: allowAny,
		})
		if err != nil {
			g.logger.Info("ws.accept.fail", "error", err, "origin", r.Header.Get("Origin"))
			return
		}
		defer func() { _ = conn.CloseNow() }()

		conn.SetReadLimit(g.config.MaxBodyBytes)
		ctx := r.Context()

		for {
			mt, data, err := conn.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
					g.logger.Debug("ws.read.fail", "error", err)
				}
				return
			}

			var frame any
			if mt != websocket.MessageText {
				frame = wsError(&apiError{status: http.StatusBadRequest, msg: msgInvalidBody, detail: "text frames only"})
			} else {
				frame = g.wsTurn(ctx, data)
			}

			if err := writeFrame(ctx, conn, frame); err != nil {
				g.logger.Info("ws.write.fail", "error", err, "close_status", websocket.CloseStatus(err))
				return
			}
		}
	}
}

func (g *Gateway) wsTurn(ctx context.Context, data []byte) any {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsError(&apiError{status: http.StatusBadRequest, msg: msgInvalidBody, detail: err.Error()})
	}
	resp, apiErr := g.respond(ctx, req)
	if apiErr != nil {
		return wsError(apiErr)
	}
	return resp
}

func wsError(e *apiError) ErrorResponse {
	body := e.body()
	body.Status = e.status
	return body
}

func writeFrame(parent context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(parent, wsWriteTimeout)
	defer cancel()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// originPatterns turns allowed origins into host patterns for
// websocket.AcceptOptions. "*" entries are skipped; the caller handles them.
func originPatterns(allowed []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHost(a)
		if h == "" || h == "*" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// originHost extracts the lower-cased host of an origin given as a URL or
// as host[:port].
func originHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}
