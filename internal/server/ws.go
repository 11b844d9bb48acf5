package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/howard-nolan/coachgate/internal/gateway"
)

// upgrader promotes the HTTP connection to a websocket. The origin check
// accepts everything: the gateway sits behind the chess web UI on the same
// host, and end-user auth is out of scope here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleNarrateWS handles GET /v1/narrate/ws: the same canonical event
// stream as POST /v1/narrate?stream, but over a websocket for front ends
// that prefer it to reading a chunked NDJSON body. The client sends one
// JSON request frame, then reads event frames until typing-end.
func (s *Server) handleNarrateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req gateway.Request
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(gateway.ErrorEvent("invalid request frame: " + err.Error()))
		return
	}

	// The request context covers the websocket's lifetime: if the client
	// goes away the handler returns, the context cancels, and the gateway
	// session stops emitting.
	for ev := range s.gw.NarrateStream(r.Context(), req) {
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}
