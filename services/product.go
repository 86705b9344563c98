package services

import (
	"context"

	"discoverly/models"
)

type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Tagline     string   `json:"tagline" validate:"max=300"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"max=50"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status" validate:"omitempty,oneof=draft scheduled live archived"`
}

// ProductService only covers what the beta flows need from products.
type ProductService struct {
	base
}

func (s *ProductService) Create(ctx context.Context, caller *models.User, in CreateProductInput) (*models.Product, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if !caller.IsBuilder() {
		return nil, Forbidden("Only builders can launch products")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	product := &models.Product{
		MakerID:     caller.ID,
		Name:        in.Name,
		Tagline:     in.Tagline,
		Description: in.Description,
		Category:    in.Category,
		Tags:        jsonList(in.Tags),
		Status:      in.Status,
	}
	if product.Status == "" {
		product.Status = models.ProductDraft
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, Internal("create product", err)
	}
	return product, nil
}
