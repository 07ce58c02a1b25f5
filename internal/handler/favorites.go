package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/gotgas/backend-go/internal/api"
	"github.com/bbernstein/gotgas/backend-go/internal/favorites"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

type FavoritesStore interface {
	Load(ctx context.Context) []models.FavoriteStation
	Add(ctx context.Context, candidate models.FavoriteCandidate) ([]models.FavoriteStation, error)
	Remove(ctx context.Context, id string) ([]models.FavoriteStation, error)
	Rename(ctx context.Context, id, rawName string) ([]models.FavoriteStation, error)
}

type FavoritesHandler struct {
	store FavoritesStore
}

func NewFavoritesHandler(store FavoritesStore) *FavoritesHandler {
	return &FavoritesHandler{store: store}
}

type renameRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *FavoritesHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.HTTPMethod {
	case http.MethodOptions:
		return api.Preflight()
	case http.MethodGet, "":
		return api.Success(api.NewFavoritesResponse(h.store.Load(ctx)))
	case http.MethodPost:
		return h.add(ctx, request)
	case http.MethodDelete:
		return h.remove(ctx, request)
	case http.MethodPatch, http.MethodPut:
		return h.rename(ctx, request)
	default:
		return api.Error("Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FavoritesHandler) add(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var candidate models.FavoriteCandidate
	if err := decodeBody(request, &candidate); err != nil {
		return api.Error("Invalid request body", http.StatusBadRequest)
	}

	favs, err := h.store.Add(ctx, candidate)
	if err != nil {
		return storeError(err)
	}
	return api.Success(api.NewFavoritesResponse(favs))
}

func (h *FavoritesHandler) remove(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := stationID(request, "")
	if id == "" {
		return api.Error("Missing station id", http.StatusBadRequest)
	}

	favs, err := h.store.Remove(ctx, id)
	if err != nil {
		return storeError(err)
	}
	return api.Success(api.NewFavoritesResponse(favs))
}

// rename validates with the same rule the store applies so the reported
// reason always matches the store's refusal.
func (h *FavoritesHandler) rename(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body renameRequest
	if err := decodeBody(request, &body); err != nil {
		return api.Error("Invalid request body", http.StatusBadRequest)
	}

	id := stationID(request, body.ID)
	if id == "" {
		return api.Error("Missing station id", http.StatusBadRequest)
	}
	if err := favorites.ValidateName(body.Name); err != nil {
		return storeError(err)
	}

	favs, err := h.store.Rename(ctx, id, body.Name)
	if err != nil {
		return storeError(err)
	}
	return api.Success(api.NewFavoritesResponse(favs))
}

func storeError(err error) (events.APIGatewayProxyResponse, error) {
	var validationErr *favorites.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return api.ErrorWithCode(validationErr.Message(), string(validationErr.Code), http.StatusBadRequest)
	case errors.Is(err, favorites.ErrMissingID):
		return api.Error("Missing station id", http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("Favorites storage failed")
		return api.Error("Could not save favorites. Please try again.", http.StatusInternalServerError)
	}
}

// stationID prefers the {id} path parameter, then the id query parameter, then fallback
func stationID(request events.APIGatewayProxyRequest, fallback string) string {
	if id := request.PathParameters["id"]; id != "" {
		return id
	}
	if id := request.QueryStringParameters["id"]; id != "" {
		return id
	}
	return fallback
}

func decodeBody(request events.APIGatewayProxyRequest, v interface{}) error {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return err
		}
		body = decoded
	}
	return json.Unmarshal(body, v)
}
