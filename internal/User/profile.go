package user

import (
	"encoding/json"
	"net/http"

	"MediMate_V1.0/internal/database"
	"MediMate_V1.0/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

/* =================================================================================
						PROFILE DOCUMENT HANDLERS
=================================================================================*/

// The mobile client owns the field set for all three profile
// collections; the server stores whatever JSON object it sends.
// Validation is limited to "must be a JSON object".

// GetProfileHandler handles GET /profile
func GetProfileHandler(c echo.Context) error {
	return getDocument(c, database.CollectionUsers, "Profile not found")
}

// UpdateProfileHandler handles PUT /profile
func UpdateProfileHandler(c echo.Context) error {
	return putDocument(c, database.CollectionUsers)
}

// GetLifestyleHandler handles GET /profile/lifestyle
func GetLifestyleHandler(c echo.Context) error {
	return getDocument(c, database.CollectionLifestyle, "Lifestyle data not found")
}

// UpdateLifestyleHandler handles PUT /profile/lifestyle
func UpdateLifestyleHandler(c echo.Context) error {
	return putDocument(c, database.CollectionLifestyle)
}

// DeleteLifestyleHandler handles DELETE /profile/lifestyle
func DeleteLifestyleHandler(c echo.Context) error {
	return deleteDocument(c, database.CollectionLifestyle)
}

// GetMedicalHistoryHandler handles GET /profile/medical-history
func GetMedicalHistoryHandler(c echo.Context) error {
	return getDocument(c, database.CollectionMedicalHistory, "Medical history not found")
}

// UpdateMedicalHistoryHandler handles PUT /profile/medical-history
func UpdateMedicalHistoryHandler(c echo.Context) error {
	return putDocument(c, database.CollectionMedicalHistory)
}

// DeleteMedicalHistoryHandler handles DELETE /profile/medical-history
func DeleteMedicalHistoryHandler(c echo.Context) error {
	return deleteDocument(c, database.CollectionMedicalHistory)
}

// GetUserDataHandler handles GET /user/data. The three records are read
// in parallel and returned together; absent records come back as null.
func GetUserDataHandler(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := sessionFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	records, err := aiService.FetchUserRecords(ctx, session)
	if err != nil {
		log.Error().Err(err).Str("user_id", session.UserID).Msg("Failed to fetch user records")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve user data"})
	}

	return c.JSON(http.StatusOK, map[string]json.RawMessage{
		"profile":         records.Profile,
		"lifestyle":       records.Lifestyle,
		"medical_history": records.MedicalHistory,
	})
}

func getDocument(c echo.Context, collection, notFoundMsg string) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	raw, err := documents.Get(ctx, collection, userID)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Str("user_id", userID).Msg("Failed to read document")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve data"})
	}
	if raw == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFoundMsg})
	}

	return c.JSONBlob(http.StatusOK, raw)
}

func putDocument(c echo.Context, collection string) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Request body must be a JSON object"})
	}
	if payload == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Request body must be a JSON object"})
	}

	if err := documents.Put(ctx, collection, userID, payload); err != nil {
		log.Error().Err(err).Str("collection", collection).Str("user_id", userID).Msg("Failed to save document")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save data"})
	}

	log.Info().Str("collection", collection).Str("user_id", userID).Msg("Document saved")
	return c.JSON(http.StatusOK, payload)
}

func deleteDocument(c echo.Context, collection string) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	if err := documents.Delete(ctx, collection, userID); err != nil {
		log.Error().Err(err).Str("collection", collection).Str("user_id", userID).Msg("Failed to delete document")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete data"})
	}

	log.Info().Str("collection", collection).Str("user_id", userID).Msg("Document deleted")
	return c.NoContent(http.StatusNoContent)
}
