// Package intake serves the HTTP surface next to the operator console: lead
// deliveries from QStash, session lookups, health and Prometheus metrics.
package intake

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/quote-assistant/agent/metrics"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
)

const (
	signatureHeader = "Upstash-Signature"
	maxLeadBytes    = 64 << 10
)

type Config struct {
	Addr      string `split_words:"true"`
	// PublicURL is the externally visible base URL QStash delivers to; when
	// set, the signature subject must equal PublicURL + request path.
	PublicURL string `envconfig:"PUBLIC_URL"`
}

// Sessions is the part of the assistant the server drives.
type Sessions interface {
	StartFromLead(ctx context.Context, sessionID string, lead statex.Lead) (*statex.Session, error)
	LoadSession(ctx context.Context, sessionID string) (*statex.Session, error)
}

// Verifier checks a QStash signature for body delivered to url.
type Verifier interface {
	Verify(signature string, body []byte, url string) error
}

type server struct {
	sessions  Sessions
	verifier  Verifier
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	publicURL string
}

type Option func(*server)

// WithVerifier requires a valid QStash signature on POST /leads.
func WithVerifier(v Verifier, publicURL string) Option {
	return func(s *server) {
		s.verifier = v
		s.publicURL = strings.TrimRight(strings.TrimSpace(publicURL), "/")
	}
}

// WithMetrics counts leads into m and serves gatherer on GET /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

func NewRouter(sessions Sessions, opts ...Option) (*gin.Engine, error) {
	if sessions == nil {
		return nil, errors.New("sessions are required")
	}
	s := &server{sessions: sessions}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/leads", s.createLead)
	r.GET("/sessions/:id", s.getSession)

	return r, nil
}

type leadRequest struct {
	SessionID string `json:"session_id"`
	statex.Lead
}

func (s *server) createLead(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLeadBytes))
	if err != nil {
		s.reject(c, http.StatusBadRequest, err)
		return
	}

	if s.verifier != nil {
		url := ""
		if s.publicURL != "" {
			url = s.publicURL + c.Request.URL.Path
		}
		if err := s.verifier.Verify(c.GetHeader(signatureHeader), body, url); err != nil {
			s.reject(c, http.StatusUnauthorized, err)
			return
		}
	}

	var req leadRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		s.reject(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.reject(c, http.StatusBadRequest, errors.New("lead name is required"))
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := s.sessions.StartFromLead(c.Request.Context(), sessionID, req.Lead)
	if err != nil {
		s.metrics.ObserveLead(metrics.OutcomeError)
		log.Error().Err(err).Str("session_id", sessionID).Msg("start quote from lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store lead"})
		return
	}

	s.metrics.ObserveLead(metrics.OutcomeOK)
	log.Info().Str("session_id", sess.ID).Str("customer", sess.Quote.Customer.Name).Msg("lead received")
	c.JSON(http.StatusCreated, gin.H{
		"session_id":    sess.ID,
		"customer_name": sess.Quote.Customer.Name,
	})
}

func (s *server) getSession(c *gin.Context) {
	sess, err := s.sessions.LoadSession(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, statex.ErrInvalidSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, statex.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("session_id", c.Param("id")).Msg("load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"updated_at": sess.UpdatedAt,
		"quote":      sess.Quote.ToPayload(sess.TaxRate),
	})
}

func (s *server) reject(c *gin.Context, status int, err error) {
	s.metrics.ObserveLead(metrics.OutcomeRejected)
	log.Warn().Err(err).Int("status", status).Msg("lead rejected")
	c.JSON(status, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
