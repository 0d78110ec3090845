package devserver

import (
	"net/http"

	"github.com/google/uuid"
)

type createConversationRequest struct {
	StudentID string `json:"student_id"`
	Mood      string `json:"mood"`
	SELSkill  string `json:"sel_skill"`
}

type endConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StudentID == "" || req.Mood == "" || req.SELSkill == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: student_id, mood, sel_skill")
		return
	}

	id := "c" + uuid.NewString()[:8]
	s.mu.Lock()
	s.conversations[id] = true
	s.mu.Unlock()

	s.log.Info("conversation created", "conversation_id", id, "mood", req.Mood, "sel_skill", req.SELSkill)
	writeJSON(w, http.StatusOK, map[string]string{
		"conversation_id":  id,
		"conversation_url": s.callBase + "/" + id,
		"status":           "active",
	})
}

func (s *Server) endConversation(w http.ResponseWriter, r *http.Request) {
	var req endConversationRequest
	if err := decodeBody(r, &req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: conversation_id")
		return
	}

	s.mu.Lock()
	active, ok := s.conversations[req.ConversationID]
	if ok {
		s.conversations[req.ConversationID] = false
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if active {
		s.log.Info("conversation ended", "conversation_id", req.ConversationID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// ActiveConversations returns how many conversations have not been ended.
func (s *Server) ActiveConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, active := range s.conversations {
		if active {
			n++
		}
	}
	return n
}
