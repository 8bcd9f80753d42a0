package ws

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/vedran77/relay/internal/auth"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, jwtSecret string, allowedOrigins []string) http.HandlerFunc {
	opts := &websocket.AcceptOptions{
		InsecureSkipVerify: slices.Contains(allowedOrigins, "*"),
		OriginPatterns:     allowedOrigins,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := auth.ParseToken(tokenStr, []byte(jwtSecret))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			hub.logger.Info("ws: accept error", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, userID)
		hub.Attach(client)

		go client.WritePump()
		client.ReadPump()
	}
}
