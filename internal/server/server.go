package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	rendererhtml "github.com/yuin/goldmark/renderer/html"

	"geotech-rag/internal/config"
	"geotech-rag/internal/helper"
	"geotech-rag/internal/rag"
)

const (
	sessionCookie = "geotech_session"
	sessionKey    = "session"
)

// SessionFactory creates the session for a new client.
type SessionFactory func(id string) *rag.Session

type Server struct {
	cfg        *config.Config
	pipeline   *rag.Pipeline
	md         goldmark.Markdown
	newSession SessionFactory

	sessions *expirable.LRU[string, *rag.Session]
}

// New creates the HTTP server. newSession may be nil, in which case clients
// get plain sessions without a key override.
func New(cfg *config.Config, pipeline *rag.Pipeline, newSession SessionFactory) *Server {
	if newSession == nil {
		newSession = rag.NewSession
	}
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(rendererhtml.WithHardWraps()),
		),
		newSession: newSession,
		sessions:   expirable.NewLRU[string, *rag.Session](cfg.Server.SessionLimit, nil, cfg.Server.SessionTTL),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	api.Use(s.withSession())
	api.GET("/status", s.Status)
	api.POST("/ask", s.Ask)
	api.GET("/history", s.History)
	api.DELETE("/history", s.ClearHistory)
	api.POST("/rebuild", s.Rebuild)
	api.GET("/knowledge-base", s.KnowledgeBase)
	api.PUT("/settings", s.UpdateSettings)
	api.GET("/photos", s.Photos)

	r.GET("/photos/:section/:name", s.Photo)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("HTTP server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// withSession attaches the caller's session, creating one and setting the
// cookie when the request has none or an unknown or expired id.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(sessionCookie)
		session := s.lookup(id)
		if session == nil {
			newID, err := helper.GenerateUUID()
			if err != nil {
				handleError(c, err)
				c.Abort()
				return
			}
			session = s.newSession(newID)
			id = newID
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, int(s.cfg.Server.SessionTTL.Seconds()), "/", "", false, true)
		}
		// re-adding restarts the idle timer
		s.sessions.Add(id, session)
		c.Set(sessionKey, session)
		c.Next()
	}
}

func (s *Server) lookup(id string) *rag.Session {
	if id == "" {
		return nil
	}
	session, _ := s.sessions.Get(id)
	return session
}

func getSession(c *gin.Context) *rag.Session {
	value, _ := c.Get(sessionKey)
	session, _ := value.(*rag.Session)
	return session
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
