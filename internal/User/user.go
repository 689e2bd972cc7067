/*
Package user implements the authenticated API surface of MediMate:
profile and onboarding data, daily health tips, the AI health chat,
nearby-hospital lookup, and first-aid reference content.
*/
package user

import (
	"context"
	"encoding/json"

	"MediMate_V1.0/internal/openaiservice"
	"MediMate_V1.0/internal/overpass"
	"MediMate_V1.0/internal/transcript"
	"MediMate_V1.0/internal/utility"
	"github.com/labstack/echo/v4"
)

// documentStore is satisfied by *database.DocumentStore.
type documentStore interface {
	Get(ctx context.Context, collection, docID string) (json.RawMessage, error)
	Put(ctx context.Context, collection, docID string, payload any) error
	Delete(ctx context.Context, collection, docID string) error
}

var (
	documents   documentStore
	aiService   *openaiservice.Service
	transcripts *transcript.Store
	hospitals   *overpass.Client
)

// Init wires the package-level dependencies. Must be called before any
// handler is registered.
func Init(docs documentStore, svc *openaiservice.Service, ts *transcript.Store, overpassClient *overpass.Client) {
	documents = docs
	aiService = svc
	transcripts = ts
	hospitals = overpassClient
}

// sessionFromContext builds the flow session from the authenticated
// request context.
func sessionFromContext(c echo.Context) (openaiservice.Session, error) {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return openaiservice.Session{}, err
	}
	return openaiservice.Session{UserID: userID}, nil
}
