package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/dcutelaria/storefront/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
}

// InMemoryProductRepository implements ProductRepository with in-memory storage
type InMemoryProductRepository struct {
	products map[int64]models.Product
}

// NewInMemoryProductRepository creates a new in-memory product repository with
// the store catalog. Prices are centavos.
func NewInMemoryProductRepository() *InMemoryProductRepository {
	products := map[int64]models.Product{
		1:  {ID: 1, Name: "Caixa Térmica 35L", Price: 24999, Category: models.CategoryThermalBox},
		2:  {ID: 2, Name: "Caixa Térmica 45L", Price: 29999, Category: models.CategoryThermalBox},
		3:  {ID: 3, Name: "Caixa Térmica 60L", Price: 34999, Category: models.CategoryThermalBox},
		4:  {ID: 4, Name: "Caixa Térmica 85L", Price: 44999, Category: models.CategoryThermalBox},
		5:  {ID: 5, Name: "Faca do Chef 8\" Aço Damasco", Price: 49999, Category: models.CategoryKnife},
		6:  {ID: 6, Name: "Faca Parrillera 10\"", Price: 39999, Category: models.CategoryKnife},
		7:  {ID: 7, Name: "Faca Desossa 6\"", Price: 27999, Category: models.CategoryKnife},
		8:  {ID: 8, Name: "Cutelo Artesanal", Price: 35999, Category: models.CategoryKnife},
		9:  {ID: 9, Name: "Kit Churrasco Completo 12 Peças", Price: 59999, Category: models.CategoryBarbecueKit},
		10: {ID: 10, Name: "Kit Churrasco Premium com Maleta", Price: 89999, Category: models.CategoryBarbecueKit},
	}

	return &InMemoryProductRepository{
		products: products,
	}
}

// GetAll returns all products ordered by id
func (r *InMemoryProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	products := make([]models.Product, 0, len(r.products))
	for _, product := range r.products {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// GetByID returns a product by its ID
func (r *InMemoryProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	product, exists := r.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return &product, nil
}
