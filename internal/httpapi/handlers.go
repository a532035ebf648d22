package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callgrid/internal/auth"
	"callgrid/internal/engine"
	"callgrid/internal/reporting"
	"callgrid/internal/session"
	"callgrid/internal/tiers"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Engine  *engine.Engine
	Reports *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateCallRequest struct {
	// Tier optionally pins the initial tier; empty means the first configured tier.
	Tier string `json:"tier,omitempty"`
}

// InitiateCall opens a call session for the authenticated client.
// The response carries warn_at and escalate_at so the client can render a
// countdown; the server-side deadlines are authoritative.
func (h Handlers) InitiateCall(c *gin.Context) {
	clientID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	var req initiateCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	cs, err := h.Engine.Initiate(c.Request.Context(), clientID, req.Tier)
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cs)
}

// AnswerCall races the answering responder against the escalation deadline.
func (h Handlers) AnswerCall(c *gin.Context) {
	responderID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	cs, err := h.Engine.Answer(c.Request.Context(), c.Param("call_id"), responderID)
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// CancelCall lets the client withdraw a call before it resolves.
func (h Handlers) CancelCall(c *gin.Context) {
	cs, err := h.Engine.Cancel(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// EscalateCall forces the call to the next tier immediately.
// RBAC: supervisor or super_admin.
func (h Handlers) EscalateCall(c *gin.Context) {
	cs, err := h.Engine.EscalateManually(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (h Handlers) GetCall(c *gin.Context) {
	cs, err := h.Engine.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// CallHistory returns the call's escalation chain, oldest first.
func (h Handlers) CallHistory(c *gin.Context) {
	callID := c.Param("call_id")
	if _, err := h.Engine.Get(c.Request.Context(), callID); err != nil {
		abortWithCallError(c, err)
		return
	}
	events, err := h.Engine.History(c.Request.Context(), callID)
	if err != nil {
		abortWithCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "events": events})
}

// --- Reports ---

// CallsReport aggregates lifecycle metrics over a time range.
// Query params: from, to (RFC3339, required), client_id (optional).
func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		Range:    rng,
		ClientID: c.Query("client_id"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// EscalationsReport aggregates escalation events over a time range.
func (h Handlers) EscalationsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.EscalationSummary(c.Request.Context(), reporting.EscalationSummaryRequest{Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("to must be RFC3339")
	}
	return reporting.TimeRange{From: from, To: to}, nil
}

// abortWithCallError maps typed service errors onto HTTP statuses.
func abortWithCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, session.ErrInvalidArgument), errors.Is(err, tiers.ErrInvalidTier):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAlreadyTerminal):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already resolved"})
	case errors.Is(err, session.ErrWindowClosed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already escalated"})
	case errors.Is(err, tiers.ErrNoFurtherTiers):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no further tiers"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
