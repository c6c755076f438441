package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"edupath-service/internal/auth"
	"edupath-service/internal/domain"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type outboundMessage struct {
	Type    string                `json:"type"`
	Payload domain.GroupStandings `json:"payload"`
}

// serveWS streams group standings over a websocket. Browsers cannot set an
// Authorization header on the upgrade request, so the token may also come
// in as a query parameter.
func (api *API) serveWS(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	if groupID == "" {
		http.Error(w, "missing groupId", http.StatusBadRequest)
		return
	}
	if _, err := api.auth.Parse(auth.BearerToken(r)); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if api.standings != nil {
		entries, err := api.standings.GroupStandings(r.Context(), groupID)
		if err != nil {
			log.Printf("seed standings for group %s: %v", groupID, err)
		} else {
			api.hub.Seed(groupID, entries)
		}
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := api.hub.Subscribe(groupID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			if err := conn.WriteJSON(outboundMessage{Type: "standings", Payload: update}); err != nil {
				return
			}
		}
	}()

	// Drain inbound frames so close handshakes are noticed. Clients have
	// nothing to send; any read error ends the session.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-done
}
