package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/panosadamop/maqam-tab/internal/audio"
	apperrors "github.com/panosadamop/maqam-tab/internal/errors"
	"github.com/panosadamop/maqam-tab/internal/maqam"
	"github.com/panosadamop/maqam-tab/internal/music"
	"github.com/panosadamop/maqam-tab/internal/pipeline"
	"github.com/panosadamop/maqam-tab/internal/store"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB

type youtubeRequest struct {
	URL          string `json:"url"`
	TuningID     string `json:"tuningId"`
	Quantization string `json:"quantization"`
	UseSpeech    *bool  `json:"useWhisper"`
}

// handleHealth reports service and external-tool availability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "MaqamTAB API",
		"version": Version,
		"tools": map[string]bool{
			"ffmpeg":  s.runner.CheckTool(r.Context(), "ffmpeg"),
			"yt_dlp":  s.runner.CheckTool(r.Context(), "yt-dlp"),
			"whisper": s.runner.CheckTool(r.Context(), "whisper"),
		},
	})
}

// handleYouTubeJob starts an async YouTube transcription job.
func (s *Server) handleYouTubeJob(w http.ResponseWriter, r *http.Request) {
	var req youtubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	url := strings.TrimSpace(req.URL)
	if !audio.IsYouTubeURL(url) {
		s.writeError(w, http.StatusBadRequest, "only YouTube URLs are supported")
		return
	}

	cfg := s.jobConfig(req.TuningID, req.Quantization, req.UseSpeech)
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	s.store.Create(id, url, cancel)

	go s.orch.Run(ctx, pipeline.Request{
		ID:         id,
		SourceType: pipeline.SourceYouTube,
		Source:     url,
	}, cfg)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id,
		"status": store.StatusPending,
	})
}

// handleUploadJob accepts a multipart audio upload and starts a job.
func (s *Server) handleUploadJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "file too large, maximum size is 100MB")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "please upload an audio file")
		return
	}
	defer file.Close()

	if !audio.AcceptedUpload(header.Filename) {
		s.writeError(w, http.StatusBadRequest, "unsupported format: upload WAV, MP3, OGG, FLAC or M4A")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "maqamtab-upload-*"+ext)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	tmp.Close()

	var useSpeech *bool
	if v := r.FormValue("useWhisper"); v != "" {
		b := v == "true" || v == "1"
		useSpeech = &b
	}
	cfg := s.jobConfig(r.FormValue("tuningId"), r.FormValue("quantization"), useSpeech)
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	s.store.Create(id, header.Filename, cancel)

	go s.orch.Run(ctx, pipeline.Request{
		ID:            id,
		SourceType:    pipeline.SourceFile,
		Source:        tmp.Name(),
		Title:         audio.TrackTitle(tmp.Name(), header.Filename),
		CleanupSource: true,
	}, cfg)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   id,
		"status":   store.StatusPending,
		"filename": header.Filename,
	})
}

// handleJobStatus polls a job: a minimal snapshot while running, the full
// payload once terminal.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, apperrors.ErrJobNotFound.Error()+" (may have expired)")
		return
	}

	if job.Status == store.StatusDone || job.Status == store.StatusError {
		s.writeJSON(w, http.StatusOK, job)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":       job.ID,
		"status":   job.Status,
		"progress": job.Progress,
		"stage":    job.Stage,
		"title":    job.Title,
		"duration": job.Duration,
		"error":    job.Error,
	})
}

// handleCancelJob marks a job cancelled. The worker stops at its next
// stage boundary.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Cancel(id) {
		s.writeError(w, http.StatusNotFound, apperrors.ErrJobNotFound.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

// handleTunings serves the fixed tuning catalog.
func (s *Server) handleTunings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, music.Tunings())
}

// handleMaqamat serves the fixed maqam profile catalog.
func (s *Server) handleMaqamat(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, maqam.Catalog())
}

func (s *Server) jobConfig(tuningID, quantization string, useSpeech *bool) pipeline.Config {
	cfg := s.config.Pipeline
	if tuningID != "" {
		cfg.TuningID = music.TuningByID(tuningID).ID
	}
	if quantization != "" {
		cfg.Quantization = music.ParseQuantization(quantization)
	}
	if useSpeech != nil {
		cfg.UseSpeech = *useSpeech
	}
	return cfg
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
