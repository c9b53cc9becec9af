package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raphaelgruber/diarist/internal/models"
	"github.com/raphaelgruber/diarist/internal/service"
)

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string           `json:"reply"`
	Docs  []string         `json:"docs,omitempty"`
	Diary *outcomeResponse `json:"diary,omitempty"`
}

type diaryResponse struct {
	Diary   string `json:"diary"`
	Emotion string `json:"emotion"`
}

type writeDiaryRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date,omitempty"`
}

type outcomeResponse struct {
	Status    service.Status `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	DiaryDate string         `json:"diary_date,omitempty"`
	Emotion   string         `json:"emotion,omitempty"`
}

type diaryTimeRequest struct {
	UserID    string `json:"user_id"`
	DiaryTime string `json:"diaryTime"`
}

type backfillRequest struct {
	UserID string `json:"user_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (s *Server) outcome(out service.Outcome) outcomeResponse {
	resp := outcomeResponse{Status: out.Status, Reason: out.Reason}
	if !out.DiaryDate.IsZero() {
		resp.DiaryDate = models.FormatDay(out.DiaryDate, s.diaries.Location())
	}
	if out.Diary != nil {
		resp.Emotion = out.Diary.Emotion
	}
	return resp
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("diarist is running\n"))
}

// handleHealth reports liveness and, when configured, store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			resp["status"] = "unhealthy"
			resp["error"] = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleChat POST /chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	res, err := s.chat.Chat(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := chatResponse{Reply: res.Reply, Docs: res.Docs}
	if res.Diary != nil {
		o := s.outcome(*res.Diary)
		resp.Diary = &o
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetDiary GET /diary?user_id=&date=YYYY-MM-DD
func (s *Server) handleGetDiary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, date := q.Get("user_id"), q.Get("date")
	if userID == "" || date == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and date are required")
		return
	}
	day, err := models.ParseDay(date, s.diaries.Location())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.diaries.GetDiary(r.Context(), userID, day)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if d == nil {
		s.writeError(w, http.StatusNotFound, "no diary for "+date)
		return
	}
	s.writeJSON(w, http.StatusOK, diaryResponse{Diary: d.Diary, Emotion: d.Emotion})
}

// handleWriteDiary POST /writeDiary runs synthesis now, optionally for a given day.
// Skips are 200 responses; failures carry the outcome status in the error message.
func (s *Server) handleWriteDiary(w http.ResponseWriter, r *http.Request) {
	var req writeDiaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	var requested *time.Time
	if req.Date != "" {
		day, err := models.ParseDay(req.Date, s.diaries.Location())
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		requested = &day
	}

	out, err := s.diaries.Synthesize(r.Context(), req.UserID, requested)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.outcome(out))
}

// handleCalendarEmotion GET /calendarEmotion?user_id=&year=&month=
func (s *Server) handleCalendarEmotion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	year, yerr := strconv.Atoi(q.Get("year"))
	month, merr := strconv.Atoi(q.Get("month"))
	if userID == "" || yerr != nil || merr != nil || month < 1 || month > 12 {
		s.writeError(w, http.StatusBadRequest, "user_id, year and month (1-12) are required")
		return
	}

	emotions, err := s.diaries.CalendarEmotions(r.Context(), userID, year, time.Month(month))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"emotions": emotions})
}

// handleDiaryTime POST /diaryTime
func (s *Server) handleDiaryTime(w http.ResponseWriter, r *http.Request) {
	var req diaryTimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.DiaryTime == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and diaryTime are required")
		return
	}

	dt, err := s.diaries.SetDiaryTime(r.Context(), req.UserID, req.DiaryTime)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"user_id": req.UserID, "diaryTime": dt.String()})
}

// handleBackfill POST /backfill starts a background job and returns it with 202.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.From == "" || req.To == "" {
		s.writeError(w, http.StatusBadRequest, "user_id, from and to are required")
		return
	}
	loc := s.diaries.Location()
	from, ferr := models.ParseDay(req.From, loc)
	to, terr := models.ParseDay(req.To, loc)
	if err := errors.Join(ferr, terr); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.jobs.StartBackfill(req.UserID, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job.Snapshot())
}

// handleListJobs GET /jobs[?user_id=]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	jobs := []service.Job{}
	for _, j := range s.jobs.ListJobs() {
		snap := j.Snapshot()
		if userID == "" || snap.UserID == userID {
			jobs = append(jobs, snap)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleGetJob GET /jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job := s.jobs.GetJob(id)
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found: "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleDiarySocket GET /ws/diary?user_id=
func (s *Server) handleDiarySocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	s.hub.ServeWS(w, r, userID)
}
