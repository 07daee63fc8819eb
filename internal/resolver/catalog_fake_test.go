package resolver

import (
	"context"
	"database/sql"
	"strings"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/repository"
)

// fakeCatalog 内存目录库，按 ProductsFilter 语义过滤
type fakeCatalog struct {
	manufacturers map[string]*domain.Manufacturer // knx code → manufacturer
	products      []*domain.Product

	findMfrErr     error
	findProductErr error
	insertErr      error
	countErr       error
	counts         map[string]int // kind → count

	inserted []*domain.Product
}

var _ repository.CatalogRepository = (*fakeCatalog)(nil)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		manufacturers: map[string]*domain.Manufacturer{},
		counts:        map[string]int{},
	}
}

func (f *fakeCatalog) addManufacturer(code, id, name, shortName string) *domain.Manufacturer {
	m := &domain.Manufacturer{
		ID:                id,
		KNXManufacturerID: code,
		Name:              name,
		ShortName:         sql.NullString{String: shortName, Valid: shortName != ""},
	}
	f.manufacturers[code] = m
	return m
}

func (f *fakeCatalog) addProduct(id, manufacturerID, name, orderNumber, knxProductID string) *domain.Product {
	p := &domain.Product{
		ID:             id,
		ManufacturerID: manufacturerID,
		Name:           name,
		OrderNumber:    sql.NullString{String: orderNumber, Valid: orderNumber != ""},
		KNXProductID:   sql.NullString{String: knxProductID, Valid: knxProductID != ""},
		Status:         domain.ProductStatusApproved,
	}
	f.products = append(f.products, p)
	return p
}

func (f *fakeCatalog) FindManufacturerByCode(ctx context.Context, code string) (*domain.Manufacturer, error) {
	if f.findMfrErr != nil {
		return nil, f.findMfrErr
	}
	return f.manufacturers[code], nil
}

func (f *fakeCatalog) FindProducts(ctx context.Context, manufacturerID string, filter repository.ProductsFilter) ([]*domain.Product, error) {
	if f.findProductErr != nil {
		return nil, f.findProductErr
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	var out []*domain.Product
	for _, p := range f.products {
		if p.ManufacturerID != manufacturerID {
			continue
		}
		order := strings.ToLower(p.OrderNumber.String)
		name := strings.ToLower(p.Name)
		switch {
		case filter.OrderPrefix != "":
			if !p.OrderNumber.Valid || !strings.HasPrefix(order, strings.ToLower(filter.OrderPrefix)) {
				continue
			}
		case filter.OrderContains != "":
			if !p.OrderNumber.Valid || !strings.Contains(order, strings.ToLower(filter.OrderContains)) {
				continue
			}
		case filter.Term != "":
			term := strings.ToLower(filter.Term)
			if !strings.Contains(order, term) && !strings.Contains(name, term) {
				continue
			}
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) FindProductByKNXID(ctx context.Context, knxProductID string) (*domain.Product, error) {
	if f.findProductErr != nil {
		return nil, f.findProductErr
	}
	for _, p := range f.products {
		if p.KNXProductID.Valid && p.KNXProductID.String == knxProductID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) InsertProduct(ctx context.Context, p *domain.Product) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, p)
	f.products = append(f.products, p)
	return nil
}

func (f *fakeCatalog) CountRelated(ctx context.Context, productID, kind string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[kind], nil
}
