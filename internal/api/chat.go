package api

import "net/http"

type chatRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
	UserID  string `json:"userId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	reply, err := s.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"reply": reply})
}
