package user

import (
	"errors"
	"net/http"

	"MediMate_V1.0/internal/openaiservice"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

/* =================================================================================
						AI HEALTH CHAT HANDLERS
=================================================================================*/

// ChatMessageRequest carries one user message.
type ChatMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// GetChatHistoryHandler handles GET /chat
func GetChatHistoryHandler(c echo.Context) error {
	session, err := sessionFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	messages := transcripts.Load(session.UserID)
	return c.JSON(http.StatusOK, map[string]any{
		"messages": messages,
	})
}

// SendChatMessageHandler handles POST /chat. The user message is
// persisted before the model is called, so a failed completion never
// loses what the user typed.
func SendChatMessageHandler(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := sessionFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	var req ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	userMsg, aiMsg, err := aiService.SendChatMessage(ctx, session, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, openaiservice.ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message cannot be empty"})
		case errors.Is(err, openaiservice.ErrNoProfileData):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please complete your profile before chatting"})
		}

		var transportErr *openaiservice.TransportError
		if errors.As(err, &transportErr) || errors.Is(err, openaiservice.ErrEmptyResponse) {
			log.Error().Err(err).Str("user_id", session.UserID).Msg("Chat completion failed")
			return c.JSON(http.StatusBadGateway, map[string]any{
				"error":        "AI service is unavailable. Please try again.",
				"user_message": userMsg,
			})
		}

		log.Error().Err(err).Str("user_id", session.UserID).Msg("Failed to process chat message")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to process message"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_message": userMsg,
		"ai_message":   aiMsg,
	})
}

// ClearChatHandler handles DELETE /chat
func ClearChatHandler(c echo.Context) error {
	session, err := sessionFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	if err := transcripts.Clear(session.UserID); err != nil {
		log.Error().Err(err).Str("user_id", session.UserID).Msg("Failed to clear chat transcript")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to clear chat history"})
	}

	return c.NoContent(http.StatusNoContent)
}
