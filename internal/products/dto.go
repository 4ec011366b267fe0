package products

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
)

// MaxOtherImages caps the secondary image references on a product.
const MaxOtherImages = 3

// ProductDTO represents the product payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	VendorEmail string          `json:"vendor_email"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MainImage   string          `json:"main_image"`
	OtherImages []string        `json:"other_images"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateProductInput captures the fields a vendor supplies for a new product.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	MainImage   string          `json:"main_image"`
	OtherImages []string        `json:"other_images" validate:"max=3"`
	Price       decimal.Decimal `json:"price"`
}

// UpdatePriceInput is the body of the price change endpoint.
type UpdatePriceInput struct {
	Price decimal.Decimal `json:"price"`
}

// ListProductsInput drives the newest-first catalog listing.
type ListProductsInput struct {
	VendorEmail string
	Limit       int
	Cursor      string
}

// ProductListResult is one page of the listing.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ProductVendorDTO answers which vendor owns a product.
type ProductVendorDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	VendorEmail string    `json:"vendor_email"`
}

func fromModel(p *models.Product) ProductDTO {
	images := p.OtherImages
	if images == nil {
		images = []string{}
	}
	return ProductDTO{
		ID:          p.ID,
		VendorEmail: p.VendorEmail,
		Name:        p.Name,
		Description: p.Description,
		MainImage:   p.MainImage,
		OtherImages: images,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (in CreateProductInput) toModel(vendorEmail string) *models.Product {
	images := make([]string, 0, len(in.OtherImages))
	for _, img := range in.OtherImages {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			images = append(images, trimmed)
		}
	}
	return &models.Product{
		VendorEmail: vendorEmail,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		MainImage:   strings.TrimSpace(in.MainImage),
		OtherImages: images,
		Price:       in.Price,
	}
}
