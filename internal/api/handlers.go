package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/export"
	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/service"
)

// maxJSONBody bounds JSON request bodies that are not document uploads
const maxJSONBody = 8 << 20

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type processRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type decryptRequest struct {
	Text     string                    `json:"text"`
	RecordID string                    `json:"record_id"`
	Record   *privacy.ProcessingRecord `json:"record"`
}

type completeRequest struct {
	Instructions string `json:"instructions"`
}

type fundRequest struct {
	FundName string `json:"fund_name"`
}

type fundResponse struct {
	funds.Mutation
	PersistWarning string `json:"persist_warning,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":        "healthy",
		"timestamp":     time.Now().Format(time.RFC3339),
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"ai_configured": s.pipeline.AIConfigured(),
		"fund_count":    s.pipeline.Registry().Snapshot().Len(),
	}
	if s.hub != nil {
		resp["websocket"] = s.hub.GetStats()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleConfig reports the non-secret settings a client needs
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token_prefix":       s.config.Masking.TokenPrefix,
		"placeholder_prefix": s.pipeline.Registry().PlaceholderPrefix(),
		"max_upload_size":    s.config.Server.MaxUploadSize,
		"ai_configured":      s.pipeline.AIConfigured(),
		"ai_model":           s.config.AI.Model,
		"websocket_enabled":  s.hub != nil,
	})
}

// handleProcess accepts a multipart document upload or a JSON text body
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		s.processUpload(w, r)
		return
	}

	var req processRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	name := req.Filename
	if name == "" {
		name = "text_input.txt"
	}
	record, err := s.pipeline.ProcessText(r.Context(), name, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) processUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.config.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeBodyError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "no file provided",
			RequestID: getRequestID(r.Context()),
		})
		return
	}
	defer file.Close()

	if header.Size > limit {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:     fmt.Sprintf("file exceeds %d bytes", limit),
			RequestID: getRequestID(r.Context()),
		})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeBodyError(w, r, err)
		return
	}

	record, err := s.pipeline.ProcessUpload(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleDecrypt restores original values with an inline or stored record
func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var (
		result privacy.DecryptResult
		err    error
	)
	switch {
	case req.Record != nil:
		result, err = s.pipeline.Decrypt(r.Context(), req.Text, req.Record)
	case req.RecordID != "":
		result, err = s.pipeline.DecryptStored(r.Context(), req.RecordID, req.Text)
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "record or record_id is required",
			RequestID: getRequestID(r.Context()),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.pipeline.Record(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleComplete runs the AI step over a stored record
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}

	record, err := s.pipeline.Complete(r.Context(), mux.Vars(r)["id"], req.Instructions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleDownload serves the masked text of a record as a file
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	record, err := s.pipeline.Record(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": maskedFilename(record)}))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, record.MaskedText)
}

// handleAudit serves the mapping tables of a record as parquet.
// ?redact=true omits original values.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	record, err := s.pipeline.Record(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := export.Options{Redact: r.URL.Query().Get("redact") == "true"}
	var buf bytes.Buffer
	rows, err := export.WriteAudit(&buf, []*privacy.ProcessingRecord{record}, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithRequestID(getRequestID(r.Context())).WithRecordID(record.ID).Info("Audit export written",
		zap.Int("rows", rows),
		zap.Bool("redacted", opts.Redact))

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": "audit_" + record.ID + ".parquet"}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleListFunds(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.ListFunds())
}

func (s *Server) handleAddFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	m, err := s.pipeline.AddFund(r.Context(), req.FundName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if m.Status == funds.StatusAdded {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, newFundResponse(m))
}

// handleRemoveFund accepts the name in a JSON body or the "name" query parameter
func (s *Server) handleRemoveFund(w http.ResponseWriter, r *http.Request) {
	req := fundRequest{FundName: r.URL.Query().Get("name")}
	if req.FundName == "" && !s.decodeJSON(w, r, &req) {
		return
	}

	m, err := s.pipeline.RemoveFund(r.Context(), req.FundName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if m.Status == funds.StatusNotFound {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, newFundResponse(m))
}

func newFundResponse(m funds.Mutation) fundResponse {
	resp := fundResponse{Mutation: m}
	if m.PersistErr != nil {
		resp.PersistWarning = m.PersistErr.Error()
	}
	return resp
}

func maskedFilename(record *privacy.ProcessingRecord) string {
	base := strings.TrimSuffix(filepath.Base(record.InputFile), filepath.Ext(record.InputFile))
	if base == "" || base == "." || base == "/" {
		base = record.ID
	}
	return base + "_masked.txt"
}

// decodeJSON reads a bounded JSON body into v and reports a 400 on failure
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeBodyError(w, r, err)
		return false
	}
	return true
}

func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	s.writeJSON(w, status, errorResponse{
		Error:     "invalid request body: " + err.Error(),
		RequestID: getRequestID(r.Context()),
	})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAIUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, privacy.ErrInputRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, privacy.ErrInvalidRecord), errors.Is(err, funds.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, privacy.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, funds.ErrRegistryFull):
		return http.StatusConflict
	case errors.Is(err, privacy.ErrExternalCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	requestID := getRequestID(r.Context())

	log := s.logger.WithRequestID(requestID)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		message = "internal server error"
	} else {
		log.Warn("Request rejected", zap.String("path", r.URL.Path), zap.Int("status_code", status), zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{Error: message, RequestID: requestID})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}
