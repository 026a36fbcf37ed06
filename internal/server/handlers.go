package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/thinkscotty/podcaster/internal/pipeline"
	"github.com/thinkscotty/podcaster/internal/scheduler"
	"github.com/thinkscotty/podcaster/internal/storage"
)

const maxTriggerBody = 1 << 20

type cronRequest struct {
	Today        string `json:"today"`
	CustomScript string `json:"custom_script"`
	Fresh        bool   `json:"fresh"`
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	var req cronRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTriggerBody))
	if err != nil {
		jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	if req.Today != "" {
		if _, err := time.Parse(time.DateOnly, req.Today); err != nil {
			jsonError(w, "today must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	rc, err := s.trigger.Start(s.runCtx, req.Today, req.Fresh, pipeline.RunOptions{CustomScript: req.CustomScript})
	if errors.Is(err, scheduler.ErrRunInProgress) {
		jsonError(w, "A run for this date is already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("Failed to start run", "error", err)
		jsonError(w, "Failed to start run", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Run triggered", "run_id", rc.RunID, "date", rc.RunDate, "custom_script", req.CustomScript != "")
	jsonResponse(w, http.StatusAccepted, map[string]string{"run_id": rc.RunID, "date": rc.RunDate})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	bundle, ok, err := pipeline.LoadBundle(r.Context(), s.records, s.environment, s.pipelineName, date)
	if err != nil {
		s.logger.Error("Failed to load run record", "date", date, "error", err)
		jsonError(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, "No run recorded for "+date, http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, bundle)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	f, err := s.blobs.Open(key)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		http.Error(w, "Bad key", http.StatusBadRequest)
		return
	case errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Error("Failed to open blob", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, status, map[string]string{"error": message})
}
