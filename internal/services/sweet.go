package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/types"
)

// ErrInvalidQuantity is returned when a restock quantity is not positive.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// InventoryChannel is the broker channel inventory events are published on.
const InventoryChannel = "inventory.events"

// SweetRepository defines persistence operations for catalog items.
type SweetRepository interface {
	GetByID(ctx context.Context, id string) (types.Sweet, error)
	List(ctx context.Context) ([]types.Sweet, error)
	Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error)
	Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error)
	Update(ctx context.Context, id string, upd types.SweetUpdate) (types.Sweet, error)
	Restock(ctx context.Context, id string, quantity int) (types.Sweet, error)
	SetImageKey(ctx context.Context, id, imageKey string) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher pushes inventory events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ObjectStore holds product images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// InventoryEvent is the payload published after a catalog mutation.
type InventoryEvent struct {
	Event      string    `json:"event"`
	SweetID    string    `json:"sweet_id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SweetService implements the catalog use-cases. The publisher and image
// store are optional; a nil value disables the corresponding feature.
type SweetService struct {
	repo      SweetRepository
	publisher EventPublisher
	images    ObjectStore
	log       zerolog.Logger
}

func NewSweetService(repo SweetRepository, publisher EventPublisher, images ObjectStore, log zerolog.Logger) *SweetService {
	return &SweetService{repo: repo, publisher: publisher, images: images, log: log}
}

func (s *SweetService) List(ctx context.Context) ([]types.Sweet, error) {
	return s.repo.List(ctx)
}

func (s *SweetService) Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error) {
	return s.repo.Search(ctx, filter)
}

func (s *SweetService) Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error) {
	created, err := s.repo.Create(ctx, sweet)
	if err != nil {
		return types.Sweet{}, err
	}
	s.publishEvent(ctx, "sweet.created", created)
	return created, nil
}

func (s *SweetService) Update(ctx context.Context, id string, upd types.SweetUpdate) (types.Sweet, error) {
	updated, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return types.Sweet{}, err
	}
	s.publishEvent(ctx, "sweet.updated", updated)
	return updated, nil
}

func (s *SweetService) Delete(ctx context.Context, id string) error {
	sweet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.images != nil && sweet.ImageKey != "" {
		if err := s.images.Delete(ctx, sweet.ImageKey); err != nil {
			s.log.Warn().Err(err).Str("sweet_id", id).Msg("failed to delete product image")
		}
	}
	s.publishEvent(ctx, "sweet.deleted", sweet)
	return nil
}

// Restock adds quantity to the stored stock. The addition happens
// atomically in the store, so concurrent restocks sum correctly.
func (s *SweetService) Restock(ctx context.Context, id string, quantity int) (types.Sweet, error) {
	if quantity <= 0 {
		return types.Sweet{}, ErrInvalidQuantity
	}
	updated, err := s.repo.Restock(ctx, id, quantity)
	if err != nil {
		return types.Sweet{}, err
	}
	s.publishEvent(ctx, "sweet.restocked", updated)
	return updated, nil
}

// UploadImage stores a product image and records its key on the sweet.
func (s *SweetService) UploadImage(ctx context.Context, id string, r io.Reader, size int64, contentType string) error {
	if s.images == nil {
		return errors.New("image storage is not configured")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	key := fmt.Sprintf("sweets/%s/image", id)
	if err := s.images.Put(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	return s.repo.SetImageKey(ctx, id, key)
}

// OpenImage streams the stored product image for a sweet.
func (s *SweetService) OpenImage(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.images == nil {
		return nil, errors.New("image storage is not configured")
	}
	sweet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sweet.ImageKey == "" {
		return nil, errors.New("sweet has no image")
	}
	return s.images.Get(ctx, sweet.ImageKey)
}

// publishEvent is best-effort: a broker failure is logged, never surfaced.
func (s *SweetService) publishEvent(ctx context.Context, event string, sweet types.Sweet) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(InventoryEvent{
		Event:      event,
		SweetID:    sweet.ID,
		Name:       sweet.Name,
		Quantity:   sweet.Quantity,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to encode inventory event")
		return
	}
	if _, err := s.publisher.Publish(ctx, InventoryChannel, payload, map[string]string{"event": event}); err != nil {
		s.log.Warn().Err(err).Str("event", event).Str("sweet_id", sweet.ID).Msg("failed to publish inventory event")
	}
}
