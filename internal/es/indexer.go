package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/agrilink/marketplace/internal/models"
)

// ProductIndexer mirrors catalog writes into the product index so search
// stays in step with the database.
type ProductIndexer struct {
	ES    *elasticsearch.Client
	Index string
}

func NewProductIndexer(client *elasticsearch.Client, index string) *ProductIndexer {
	return &ProductIndexer{ES: client, Index: index}
}

func (i *ProductIndexer) IndexProduct(ctx context.Context, p *models.Product) error {
	doc := map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"sold_out":    p.SoldOut,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index encode: %w", err)
	}

	res, err := i.ES.Index(i.Index, &buf,
		i.ES.Index.WithDocumentID(p.ID.String()),
		i.ES.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index response: %s", res.Status())
	}
	return nil
}

func (i *ProductIndexer) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := i.ES.Delete(i.Index, id.String(), i.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete response: %s", res.Status())
	}
	return nil
}
