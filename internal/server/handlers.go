package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/analysis"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/export"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// multipart framing needs headroom beyond the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, common.InvalidInputErrorf("File size exceeds %dMB limit", s.maxUpload>>20))
			return
		}
		s.writeError(w, r, common.InvalidInputError("No file provided"))
		return
	}
	defer file.Close()

	if !constants.IsAllowedExt(filepath.Ext(header.Filename)) {
		s.writeError(w, r, common.InvalidInputError("Only PDF files are supported"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		s.writeError(w, r, common.WrapError(err, "read upload"))
		return
	}
	switch {
	case len(data) == 0:
		s.writeError(w, r, common.InvalidInputError("No file provided"))
		return
	case int64(len(data)) > s.maxUpload:
		s.writeError(w, r, common.InvalidInputErrorf("File size exceeds %dMB limit", s.maxUpload>>20))
		return
	}

	if mt := mimetype.Detect(data); !mt.Is(constants.PDFMimeType) {
		s.writeError(w, r, common.InvalidInputErrorf("file content is %s, not a PDF", mt.String()))
		return
	}

	result, err := s.deps.Ingest.Ingest(r.Context(), data, filepath.Base(header.Filename))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	pageNumber, err := strconv.Atoi(r.PathValue("pageNumber"))
	if err != nil {
		s.writeError(w, r, common.InvalidInputErrorf("page number %q is not an integer", r.PathValue("pageNumber")))
		return
	}

	img, err := s.deps.Sessions.Page(sessionID, pageNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", constants.PNGMimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"page-%d.png\"", pageNumber))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		s.logger.Warn("http.write_failed", "error", err)
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.deps.Sessions.List())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Sessions.Info(r.PathValue("sessionId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.deps.Analysis.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

type manualMaterialRequest struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Size        string          `json:"size"`
	Material    string          `json:"material"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Notes       *string         `json:"notes"`
}

func (m manualMaterialRequest) validate() error {
	if !entity.QuantityInRange(m.Quantity) {
		return common.InvalidInputError("quantity is out of range")
	}
	return common.NewValidator().
		Field("category", m.Category, common.Required, common.MaxLength(100)).
		Field("description", m.Description, common.Required, common.MaxLength(500)).
		Field("unit", m.Unit, common.MaxLength(20)).
		Err()
}

func (s *Server) handleManualMaterial(w http.ResponseWriter, r *http.Request) {
	var req manualMaterialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec := entity.NewManualRecord(entity.ManualInput{
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Size:        req.Size,
		Material:    req.Material,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Notes:       req.Notes,
	})
	s.writeJSON(w, r, http.StatusCreated, rec)
}

type exportRequest struct {
	Materials []entity.MaterialRecord `json:"materials"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.deps.Export.Export(r.Context(), format, req.Materials)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", doc.FileName(s.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		s.logger.Warn("http.write_failed", "error", err)
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Timestamp: s.now().UTC()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return common.InvalidInputErrorf("invalid JSON body: %v", err)
	}
	return nil
}
