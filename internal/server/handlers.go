package server

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/gallery"
	"geotech-rag/internal/models"
	"geotech-rag/internal/parser"
	"geotech-rag/internal/rag"
)

type statusResponse struct {
	State      rag.State             `json:"state"`
	KeyPresent bool                  `json:"key_present"`
	PDFCount   int                   `json:"pdf_count"`
	Index      *models.IndexMetadata `json:"index,omitempty"`
	Error      string                `json:"error,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string               `json:"answer"`
	AnswerHTML string               `json:"answer_html"`
	Sources    []models.ScoredChunk `json:"sources"`
	State      rag.State            `json:"state"`
}

type settingsRequest struct {
	APIKey string `json:"api_key"`
}

type pdfFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type knowledgeBaseResponse struct {
	Dir       string                `json:"dir"`
	Files     []pdfFile             `json:"files"`
	Index     *models.IndexMetadata `json:"index,omitempty"`
	Staleness *rag.Staleness        `json:"staleness,omitempty"`
}

// Status brings the session up if it can and reports where it stands.
func (s *Server) Status(c *gin.Context) {
	success(c, s.status(c))
}

func (s *Server) status(c *gin.Context) statusResponse {
	session := getSession(c)
	state, err := s.pipeline.EnsureReady(c.Request.Context(), session)
	resp := statusResponse{
		State:      state,
		KeyPresent: s.pipeline.KeyAvailable(session),
		Index:      session.IndexMetadata(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	names, err := parser.ListPDFs(s.cfg.PDFDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list PDFs")
	}
	resp.PDFCount = len(names)
	return resp
}

func (s *Server) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	answer, err := s.pipeline.Ask(c.Request.Context(), getSession(c), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, askResponse{
		Answer:     answer.Text,
		AnswerHTML: s.renderMarkdown(answer.Text),
		Sources:    answer.Sources,
		State:      answer.State,
	})
}

func (s *Server) History(c *gin.Context) {
	success(c, getSession(c).Transcript())
}

func (s *Server) ClearHistory(c *gin.Context) {
	if err := s.pipeline.ClearHistory(c.Request.Context(), getSession(c)); err != nil {
		handleError(c, err)
		return
	}
	success(c, gin.H{"cleared": true})
}

func (s *Server) Rebuild(c *gin.Context) {
	session := getSession(c)
	state, err := s.pipeline.Rebuild(c.Request.Context(), session)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, gin.H{"state": state, "index": session.IndexMetadata()})
}

func (s *Server) KnowledgeBase(c *gin.Context) {
	names, err := parser.ListPDFs(s.cfg.PDFDir)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := knowledgeBaseResponse{Dir: s.cfg.PDFDir, Files: make([]pdfFile, 0, len(names))}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(s.cfg.PDFDir, name))
		if err != nil {
			continue
		}
		resp.Files = append(resp.Files, pdfFile{Name: name, Size: info.Size()})
	}
	builder := s.pipeline.Builder()
	meta, err := builder.Metadata(c.Request.Context())
	switch {
	case err == nil:
		resp.Index = meta
		if resp.Staleness, err = builder.Staleness(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to compare PDFs with the index")
		}
	case !errors.Is(err, chromemdb.ErrIndexNotFound):
		log.Warn().Err(err).Msg("Failed to read index metadata")
	}
	success(c, resp)
}

// UpdateSettings stores the session's API key override and reports the new status.
func (s *Server) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	getSession(c).SetKeyOverride(req.APIKey)
	success(c, s.status(c))
}

func (s *Server) Photos(c *gin.Context) {
	sections, err := gallery.Sections(s.cfg.PhotoDirs)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, sections)
}

func (s *Server) Photo(c *gin.Context) {
	path, ok := gallery.Resolve(s.cfg.PhotoDirs, c.Param("section"), c.Param("name"))
	if !ok {
		fail(c, http.StatusNotFound, "not_found", "not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		fail(c, http.StatusNotFound, "not_found", "not found")
		return
	}
	c.File(path)
}

func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("Failed to render answer")
		return ""
	}
	return buf.String()
}
