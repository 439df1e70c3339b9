package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
)

// Indexer mirrors catalog changes into the search index. A nil Indexer
// disables indexing (tests, deployments without Elasticsearch).
type Indexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type CatalogService struct {
	Repo    *repo.GormRepo
	Events  events.Publisher
	Indexer Indexer
}

func NewCatalogService(r *repo.GormRepo, pub events.Publisher, idx Indexer) *CatalogService {
	return &CatalogService{Repo: r, Events: pub, Indexer: idx}
}

func (s *CatalogService) publish(ctx context.Context, key string, event map[string]any) {
	if err := s.Events.Publish(ctx, events.TopicProductEvents, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "topic", events.TopicProductEvents, "error", err)
	}
}

func (s *CatalogService) index(ctx context.Context, p *models.Product) {
	if s.Indexer == nil {
		return
	}
	if err := s.Indexer.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Error("product index failed", "product_id", p.ID, "error", err)
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.ProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("product read: %w", apperr.ErrStorage)
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, page, size int) ([]models.Product, int64, error) {
	offset, limit := Paginate(page, size)
	items, total, err := s.Repo.ListProducts(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("product list: %w", apperr.ErrStorage)
	}
	return items, total, nil
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    uint
	ImageURL    string
}

func (s *CatalogService) CreateProduct(ctx context.Context, farmerID uuid.UUID, in ProductInput) (*models.Product, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name required: %w", apperr.ErrInvalidState)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("price must be non-negative: %w", apperr.ErrInvalidState)
	}

	p := &models.Product{
		FarmerID:    farmerID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		SoldOut:     in.Quantity == 0,
		ImageURL:    in.ImageURL,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("product create: %w", apperr.ErrStorage)
	}

	s.index(ctx, p)
	s.publish(ctx, p.ID.String(), map[string]any{
		"type":       "product_created",
		"product_id": p.ID,
		"name":       p.Name,
	})
	return p, nil
}

type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *uint
	SoldOut     *bool
	ImageURL    *string
}

// PatchProduct applies the set fields only. SoldOut and Quantity are
// independent: flipping the flag does not touch the stock count.
func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, fmt.Errorf("price must be non-negative: %w", apperr.ErrInvalidState)
		}
		p.Price = *patch.Price
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.SoldOut != nil {
		p.SoldOut = *patch.SoldOut
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}

	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("product save: %w", apperr.ErrStorage)
	}

	s.index(ctx, p)
	s.publish(ctx, p.ID.String(), map[string]any{
		"type":       "product_updated",
		"product_id": p.ID,
	})
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.Repo.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("product delete: %w", apperr.ErrStorage)
	}
	if !deleted {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}

	if s.Indexer != nil {
		if err := s.Indexer.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Error("product unindex failed", "product_id", id, "error", err)
		}
	}
	s.publish(ctx, id.String(), map[string]any{
		"type":       "product_deleted",
		"product_id": id,
	})
	return nil
}

// RecordSale decrements stock after a real purchase. SoldOut flips only
// when the count actually reaches zero.
func (s *CatalogService) RecordSale(ctx context.Context, id uuid.UUID, quantity uint) (*models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if quantity > p.Quantity {
		return nil, fmt.Errorf("insufficient stock for product %s: %w", id, apperr.ErrInvalidState)
	}

	p.Quantity -= quantity
	if p.Quantity == 0 {
		p.SoldOut = true
	}
	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("product save: %w", apperr.ErrStorage)
	}

	s.index(ctx, p)
	s.publish(ctx, p.ID.String(), map[string]any{
		"type":       "product_sale",
		"product_id": p.ID,
		"quantity":   quantity,
		"remaining":  p.Quantity,
	})
	return p, nil
}

// Paginate clamps page/size into an offset and limit.
func Paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return (page - 1) * size, size
}
