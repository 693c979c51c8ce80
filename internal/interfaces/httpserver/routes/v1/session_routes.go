package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainsession "prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/metrics"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver/handlers"
	sessionreq "prepd-server/services/realtime-api/internal/interfaces/httpserver/requests/session"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver/responses"
	sessionres "prepd-server/services/realtime-api/internal/interfaces/httpserver/responses/session"
	"prepd-server/services/realtime-api/internal/utils/platformerrors"
)

// RegisterSessionRoutes registers the interview session routes.
func RegisterSessionRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.POST("/sessions", createSession(handler))
	router.GET("/sessions/:id", getSession(handler))
	router.PUT("/sessions/:id", sendInput(handler))
	router.POST("/sessions/:id/end", endSession(handler))
	router.POST("/sessions/:id/negotiate", negotiate(handler))
}

// createSession godoc
// @Summary      Create an interview session
// @Description  Issues an ephemeral provider credential, opens the provider channel and persists the session.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        request body sessionreq.CreateSessionRequest false "Session parameters"
// @Success      201 {object} sessionres.CreateSessionResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Failure      504 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions [post]
func createSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := extractUserID(c)

		var req sessionreq.CreateSessionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body")
				return
			}
		}

		sess, secret, err := handler.CreateSession(c.Request.Context(), &domainsession.CreateSessionRequest{
			Model: req.Model,
		}, userID)
		if err != nil {
			responses.HandleError(c, err, "failed to create session")
			return
		}

		metrics.RecordSessionCreated()
		c.JSON(http.StatusCreated, sessionres.NewCreateSessionResponse(sess, secret))
	}
}

// getSession godoc
// @Summary      Get an interview session
// @Description  Retrieves a session by ID. Users can only access their own sessions.
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} sessionres.SessionResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{id} [get]
func getSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := handler.GetSession(c.Request.Context(), c.Param("id"), extractUserID(c))
		if err != nil {
			responses.HandleError(c, err, "failed to get session")
			return
		}

		c.JSON(http.StatusOK, sessionres.NewSessionResponse(sess))
	}
}

// sendInput godoc
// @Summary      Send input to a session
// @Description  Relays one audio chunk, text input or control message to the session's open provider channel. A stop control message ends the session.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body sessionreq.SendInputRequest true "Input payload"
// @Success      200 {object} sessionres.SendInputResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{id} [put]
func sendInput(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionreq.SendInputRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body")
			return
		}

		in := &domainsession.Input{
			AudioChunk: req.AudioChunk,
			Text:       req.TextInput,
			Timestamp:  req.Timestamp,
			Sequence:   req.SequenceNumber,
		}
		if req.ControlMessage != nil {
			in.Control = &domainsession.Control{Type: req.ControlMessage.Type}
		}

		ended, err := handler.SendInput(c.Request.Context(), c.Param("id"), extractUserID(c), in)
		if err != nil {
			responses.HandleError(c, err, "failed to relay input")
			return
		}

		if kind, ok := in.Kind(); ok {
			metrics.MessagesRelayed.WithLabelValues(kind).Inc()
		}

		// A stop control message routes to the end flow.
		if ended != nil {
			if !ended.AlreadyEnded {
				metrics.RecordSessionClosed()
			}
			c.JSON(http.StatusOK, sessionres.NewEndSessionResponse(ended))
			return
		}

		c.JSON(http.StatusOK, sessionres.SendInputResponse{Success: true})
	}
}

// endSession godoc
// @Summary      End an interview session
// @Description  Completes the session, closes its provider channel and returns the transcript location. Ending a completed session is idempotent.
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} sessionres.EndSessionResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{id}/end [post]
func endSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := handler.EndSession(c.Request.Context(), c.Param("id"), extractUserID(c))
		if err != nil {
			responses.HandleError(c, err, "failed to end session")
			return
		}

		// Repeat Ends are idempotent and must not recount.
		if !result.AlreadyEnded {
			metrics.RecordSessionClosed()
		}
		c.JSON(http.StatusOK, sessionres.NewEndSessionResponse(result))
	}
}

// negotiate godoc
// @Summary      Relay an SDP offer
// @Description  Forwards the WebRTC offer to the realtime provider authenticated with the ephemeral credential and returns the answer verbatim. Provider rejections pass through with their original status.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body sessionreq.NegotiateRequest true "SDP offer"
// @Success      200 {object} sessionres.NegotiateResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /sessions/{id}/negotiate [post]
func negotiate(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionreq.NegotiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation,
				"offerSdp, model and clientSecret are required")
			return
		}

		result, err := handler.Negotiate(c.Request.Context(), &domainsession.NegotiationRequest{
			SessionID:    c.Param("id"),
			OfferSDP:     req.OfferSDP,
			Model:        req.Model,
			ClientSecret: req.ClientSecret,
		})
		if err != nil {
			// Provider rejections pass through with their own status and body.
			var upstream *domainsession.UpstreamError
			if errors.As(err, &upstream) {
				c.JSON(upstream.Status, sessionres.NegotiateErrorResponse{
					Success: false,
					Error:   "negotiation rejected by provider",
					Details: upstream.Body,
					Status:  upstream.Status,
				})
				return
			}
			responses.HandleError(c, err, "failed to negotiate with provider")
			return
		}

		c.JSON(http.StatusOK, sessionres.NegotiateResponse{
			Success: true,
			SDP:     result.AnswerSDP,
		})
	}
}

// extractUserID returns the authenticated user, or "anonymous" when auth is
// disabled.
func extractUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id
		}
	}
	return "anonymous"
}
