package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"schls/core/downloader"
	"schls/core/soundcloud"
	"schls/logger"
)

type createDownloadResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Codec      string `json:"codec"`
	OutputPath string `json:"outputPath"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *soundcloud.ValidationError
	var nf *soundcloud.NotFoundError
	var ue *soundcloud.UpstreamError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ue):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	account, err := s.svc.Client().Me(r.Context())
	if err != nil {
		logger.Warn("account lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) createDownload(w http.ResponseWriter, r *http.Request) {
	var req downloader.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	// Output location is a server-side decision.
	req.OutputDir = ""

	prepared, err := s.svc.Prepare(r.Context(), req)
	if err != nil {
		logger.Warn("download rejected", logger.String("url", req.URL), logger.ErrorField(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	id, events := s.svc.Start(ctx, prepared)

	j := newJob(jobState{
		ID:         id,
		URL:        req.URL,
		Title:      prepared.Track.Title,
		Codec:      string(prepared.Job.Codec),
		OutputPath: prepared.Job.OutputPath,
		Total:      prepared.Track.Duration,
	}, cancel)
	s.jobs.add(j)
	go func() {
		defer cancel()
		j.consume(events)
	}()

	logger.Info("download started",
		logger.String("id", id),
		logger.String("title", prepared.Track.Title),
		logger.String("codec", string(prepared.Job.Codec)))

	writeJSON(w, http.StatusAccepted, createDownloadResponse{
		ID:         id,
		Title:      prepared.Track.Title,
		Codec:      string(prepared.Job.Codec),
		OutputPath: prepared.Job.OutputPath,
	})
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, s.jobs.list())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		logger.Error("history list failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list downloads")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if j, ok := s.jobs.get(id); ok {
		writeJSON(w, http.StatusOK, j.snapshot())
		return
	}

	if s.history != nil {
		record, err := s.history.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load download")
			return
		}
		if record != nil {
			writeJSON(w, http.StatusOK, record)
			return
		}
	}
	writeError(w, http.StatusNotFound, "download not found")
}

func (s *Server) cancelDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, ok := s.jobs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "download not found")
		return
	}
	if j.finished() {
		writeError(w, http.StatusConflict, "download already finished")
		return
	}

	j.cancel()
	<-j.done
	logger.Info("download cancelled", logger.String("id", id))
	writeJSON(w, http.StatusOK, j.snapshot())
}
