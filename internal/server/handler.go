package server

import (
	"encoding/json"
	"net/http"

	"github.com/howard-nolan/coachgate/internal/gateway"
	"github.com/howard-nolan/coachgate/internal/persona"
	"github.com/howard-nolan/coachgate/internal/provider"
	"github.com/howard-nolan/coachgate/internal/stream"
)

// narrateRequest is the body of POST /v1/narrate: the gateway request plus
// a flag selecting streamed NDJSON delivery over a single JSON result.
type narrateRequest struct {
	gateway.Request
	Stream bool `json:"stream"`
}

// remarkRequest is the body of POST /v1/remark. Event names the game moment
// ("winning", "capture", "user-blunder", ...); Context is opaque
// game-state text the caller wants the remark grounded in.
type remarkRequest struct {
	Event   string        `json:"event"`
	Context string        `json:"context"`
	Effort  string        `json:"effort,omitempty"`
	Route   gateway.Route `json:"route"`
	Stream  bool          `json:"stream"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth is a basic liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNarrate handles POST /v1/narrate: free-form narration of a game
// state, streamed or one-shot depending on the request.
func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	var req narrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Stream {
		// r.Context() cancels when the client disconnects, which is what
		// tears down the upstream provider connection mid-stream.
		events := s.gw.NarrateStream(r.Context(), req.Request)
		if err := stream.Write(w, events); err != nil {
			s.log.Error().Err(err).Msg("writing narrate stream")
		}
		return
	}

	res, err := s.gw.Narrate(r.Context(), req.Request)
	if err != nil {
		s.log.Error().Err(err).Msg("narrate failed")
		writeError(w, http.StatusBadGateway, "provider error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRemark handles POST /v1/remark: a short persona-voiced remark about
// a game moment. The active character's voice becomes the system prompt;
// the caller's context text is the user content.
//
// Remarks degrade gracefully: if the whole gateway fails, the canned taunt
// book supplies a line so the board UI always has something to say.
func (s *Server) handleRemark(w http.ResponseWriter, r *http.Request) {
	var req remarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cat := persona.CategoryFromName(req.Event)

	// The character may simply decline to speak — intensity and
	// when-losing damping. 204 tells the caller "no remark this time".
	if !s.profile.Taunts.ShouldSpeak(cat) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	greq := gateway.Request{
		System: s.profile.Voice,
		User:   req.Context,
		Effort: provider.Effort(req.Effort),
		Route:  req.Route,
	}

	if req.Stream {
		events := s.gw.RemarkStream(r.Context(), greq)
		if err := stream.Write(w, events); err != nil {
			s.log.Error().Err(err).Msg("writing remark stream")
		}
		return
	}

	res, err := s.gw.Remark(r.Context(), greq)
	if err != nil {
		if line := s.cannedLine(cat); line != "" {
			s.log.Warn().Err(err).Msg("remark failed, serving canned line")
			writeJSON(w, http.StatusOK, map[string]string{
				"answer":   line,
				"provider": "canned",
			})
			return
		}
		s.log.Error().Err(err).Msg("remark failed")
		writeError(w, http.StatusBadGateway, "provider error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCharacter returns the active character profile as JSON, for
// tooling and the web UI.
func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profile)
}

func (s *Server) cannedLine(cat persona.Category) string {
	if s.book == nil {
		return ""
	}
	return s.book.Pick(cat, s.profile.Taunts.Rudeness)
}
