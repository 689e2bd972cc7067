package user

import (
	"errors"
	"net/http"

	"MediMate_V1.0/internal/openaiservice"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

/* =================================================================================
						DAILY HEALTH TIPS HANDLER
=================================================================================*/

// GetHealthTipsHandler handles GET /tips. Tips are regenerated at most
// once per calendar day per user; within a day the stored document is
// returned as-is.
func GetHealthTipsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := sessionFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	doc, err := aiService.GenerateHealthTips(ctx, session)
	if err != nil {
		return tipsErrorResponse(c, session.UserID, err)
	}

	return c.JSON(http.StatusOK, doc)
}

func tipsErrorResponse(c echo.Context, userID string, err error) error {
	switch {
	case errors.Is(err, openaiservice.ErrNoUserLoggedIn):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	case errors.Is(err, openaiservice.ErrNoProfileData):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please complete your profile before requesting tips"})
	case errors.Is(err, openaiservice.ErrMalformedResponse),
		errors.Is(err, openaiservice.ErrUnexpectedShape),
		errors.Is(err, openaiservice.ErrEmptyResponse):
		log.Error().Err(err).Str("user_id", userID).Msg("Tips generation returned unusable content")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to generate tips. Please try again."})
	}

	var transportErr *openaiservice.TransportError
	if errors.As(err, &transportErr) {
		log.Error().Err(err).Str("user_id", userID).Msg("Completions API unreachable")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "AI service is unavailable. Please try again."})
	}

	log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate health tips")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate tips"})
}
