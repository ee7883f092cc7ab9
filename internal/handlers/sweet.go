package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

const (
	defaultPriceMax = 1e6
	maxImageBytes   = 8 << 20
	imageFormField  = "image"
	maxImageFormMem = 8 << 20
)

// SweetHandler provides the catalog endpoints.
type SweetHandler struct {
	sweetService *services.SweetService
	log          zerolog.Logger
}

func NewSweetHandler(sweetService *services.SweetService, log zerolog.Logger) *SweetHandler {
	return &SweetHandler{sweetService: sweetService, log: log}
}

// SweetRouter registers the catalog routes. Reads are public; mutations
// require an authenticated admin.
func SweetRouter(r chi.Router, handler *SweetHandler, authenticate func(http.Handler) http.Handler) {
	r.Get("/", handler.List)
	r.Get("/search", handler.Search)

	r.Group(func(r chi.Router) {
		r.Use(authenticate, RequireAdmin)
		r.Post("/", handler.Create)
		r.Put("/{sweetID}", handler.Update)
		r.Delete("/{sweetID}", handler.Delete)
		r.Patch("/{sweetID}/restock", handler.Restock)
		r.Post("/{sweetID}/image", handler.UploadImage)
	})

	r.Get("/{sweetID}/image", handler.GetImage)
}

// SweetCreateRequest is the payload for creating a catalog item.
type SweetCreateRequest struct {
	Name     string  `json:"name" validate:"required,min=1"`
	Category string  `json:"category"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

// SweetUpdateRequest is a partial update; absent fields stay unchanged.
type SweetUpdateRequest struct {
	Name     *string  `json:"name"`
	Category *string  `json:"category"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

// RestockRequest carries the quantity to add to stock.
type RestockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *SweetHandler) List(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.sweetService.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sweets")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sweets)
}

func (h *SweetHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sweets, err := h.sweetService.Search(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to search sweets")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sweets)
}

func (h *SweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SweetCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if msg := validateRequest(req); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	created, err := h.sweetService.Create(r.Context(), types.Sweet{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create sweet")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sweetID")

	var req SweetUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "name must not be empty")
		return
	}
	if req.Price != nil && *req.Price <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "price must be greater than 0")
		return
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		writeError(w, http.StatusUnprocessableEntity, "quantity must not be negative")
		return
	}

	updated, err := h.sweetService.Update(r.Context(), id, types.SweetUpdate{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sweet not found")
			return
		}
		h.log.Error().Err(err).Str("sweet_id", id).Msg("failed to update sweet")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sweetID")

	if err := h.sweetService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sweet not found")
			return
		}
		h.log.Error().Err(err).Str("sweet_id", id).Msg("failed to delete sweet")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweet deleted"})
}

func (h *SweetHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sweetID")

	quantity, err := parseRestockQuantity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.sweetService.Restock(r.Context(), id, quantity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "Quantity must be greater than 0")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Sweet not found")
		default:
			h.log.Error().Err(err).Str("sweet_id", id).Msg("failed to restock sweet")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SweetHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sweetID")

	if err := r.ParseMultipartForm(maxImageFormMem); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeError(w, http.StatusUnprocessableEntity, "image too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := h.sweetService.UploadImage(r.Context(), id, file, header.Size, contentType); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sweet not found")
			return
		}
		h.log.Error().Err(err).Str("sweet_id", id).Msg("failed to upload image")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image uploaded"})
}

func (h *SweetHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sweetID")

	reader, err := h.sweetService.OpenImage(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sweet not found")
			return
		}
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		h.log.Warn().Err(err).Str("sweet_id", id).Msg("image stream interrupted")
	}
}

func parseSearchFilter(r *http.Request) (types.SweetFilter, error) {
	query := r.URL.Query()
	filter := types.SweetFilter{
		Name:     strings.TrimSpace(query.Get("name")),
		Category: strings.TrimSpace(query.Get("category")),
		PriceMax: defaultPriceMax,
	}

	if raw := strings.TrimSpace(query.Get("price_min")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return types.SweetFilter{}, errors.New("invalid price_min")
		}
		filter.PriceMin = value
	}
	if raw := strings.TrimSpace(query.Get("price_max")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return types.SweetFilter{}, errors.New("invalid price_max")
		}
		filter.PriceMax = value
	}
	return filter, nil
}

// parseRestockQuantity reads the quantity from a JSON body, falling back to
// a query parameter for clients that send it in the URL.
func parseRestockQuantity(r *http.Request) (int, error) {
	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Quantity != 0 {
		return req.Quantity, nil
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("quantity")); raw != "" {
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.New("invalid quantity")
		}
		return quantity, nil
	}
	return 0, errors.New("Quantity must be greater than 0")
}
