package http

import (
	"net/http"

	"github.com/Strob0t/devteam/internal/domain/chat"
)

// HeaderAgentType names the calling agent when the body does not.
const HeaderAgentType = "X-Agent-Type"

// Chat handles POST /api/v1/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.Request](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	if req.AgentType == "" {
		req.AgentType = r.Header.Get(HeaderAgentType)
	}
	resp, err := h.Router.Chat(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
