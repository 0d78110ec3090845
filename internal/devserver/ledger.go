package devserver

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/tess/pkg/domain"
)

type createSessionRequest struct {
	StudentID  string   `json:"student_id"`
	MoodEmoji  string   `json:"mood_emoji"`
	MoodScore  int      `json:"mood_score"`
	SELSkill   string   `json:"sel_skill"`
	ContextTag string   `json:"context_tag"`
	Transcript string   `json:"transcript"`
	Flags      []string `json:"flags"`
	Duration   int      `json:"duration"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !domain.IsCanonicalID(req.StudentID) {
		writeError(w, http.StatusBadRequest, `invalid input syntax for type uuid: "`+req.StudentID+`"`)
		return
	}
	if req.MoodEmoji == "" || req.SELSkill == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: mood_emoji, sel_skill")
		return
	}
	if req.Flags == nil {
		req.Flags = []string{}
	}

	rec := domain.CheckInSession{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		MoodEmoji:  req.MoodEmoji,
		MoodScore:  req.MoodScore,
		SELSkill:   req.SELSkill,
		ContextTag: req.ContextTag,
		Transcript: req.Transcript,
		Flags:      req.Flags,
		Duration:   req.Duration,
		CreatedAt:  s.now().UTC(),
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd domain.SessionUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.sessions, func(c domain.CheckInSession) bool { return c.ID == id })
	if i < 0 {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	rec := &s.sessions[i]
	if upd.MoodScore != nil {
		rec.MoodScore = *upd.MoodScore
	}
	if upd.Transcript != nil {
		rec.Transcript = *upd.Transcript
	}
	if upd.Flags != nil {
		rec.Flags = upd.Flags
	}
	if upd.Duration != nil {
		rec.Duration = *upd.Duration
	}
	writeJSON(w, http.StatusOK, *rec)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: student_id")
		return
	}

	s.mu.Lock()
	out := make([]domain.CheckInSession, 0, len(s.sessions))
	for _, rec := range s.sessions {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()

	asc := r.URL.Query().Get("order") == "created_at.asc"
	slices.SortStableFunc(out, func(a, b domain.CheckInSession) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if asc {
			return c
		}
		return -c
	})
	writeJSON(w, http.StatusOK, out)
}

// Sessions returns a copy of every stored check-in.
func (s *Server) Sessions() []domain.CheckInSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sessions)
}

