package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/dateplan/internal/auth"
)

// HandleWebSocket upgrades the connection of the authenticated member and
// runs it as a Hub client until it closes.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := auth.MemberID(r.Context())
		if memberID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "member_id", memberID, "error", err)
			return
		}

		hub.logger.Debug("websocket connected", "member_id", memberID)
		NewClient(hub, conn, memberID).Run(r.Context())
	}
}
