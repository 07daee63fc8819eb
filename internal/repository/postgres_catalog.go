package repository

import (
	"context"
	"database/sql"
	"fmt"

	"knx-resolve/internal/domain"
)

const defaultProductLimit = 5

// relatedTables CountRelated 允许的 kind → 表名映射（防止拼接任意表名）
var relatedTables = map[string]string{
	domain.RelatedCommunicationObjects: "communication_objects",
	domain.RelatedParameters:           "parameters",
	domain.RelatedSpecifications:       "technical_specifications",
}

// PostgresCatalogRepository 产品目录 Repository 实现
type PostgresCatalogRepository struct {
	db *sql.DB
}

// NewPostgresCatalogRepository 创建产品目录 Repository
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

// 确保实现了接口
var _ CatalogRepository = (*PostgresCatalogRepository)(nil)

const manufacturerColumns = `
	id::text,
	knx_manufacturer_id,
	hex_code,
	name,
	short_name,
	country,
	product_count,
	application_program_count`

// FindManufacturerByCode 根据 KNX 厂商编码获取厂商
func (r *PostgresCatalogRepository) FindManufacturerByCode(ctx context.Context, code string) (*domain.Manufacturer, error) {
	if code == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM manufacturers WHERE knx_manufacturer_id = $1`, manufacturerColumns)

	var m domain.Manufacturer
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&m.ID,
		&m.KNXManufacturerID,
		&m.HexCode,
		&m.Name,
		&m.ShortName,
		&m.Country,
		&m.ProductCount,
		&m.ApplicationProgramCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manufacturer: %w", err)
	}

	return &m, nil
}

const productColumns = `
	id::text,
	knx_product_id,
	manufacturer_id::text,
	name,
	order_number,
	description,
	category,
	medium_types,
	confidence,
	status,
	source_count,
	specifications`

// FindProducts 按过滤条件查询某厂商的产品
func (r *PostgresCatalogRepository) FindProducts(ctx context.Context, manufacturerID string, filter ProductsFilter) ([]*domain.Product, error) {
	if manufacturerID == "" {
		return nil, fmt.Errorf("manufacturer_id is required")
	}

	where := "manufacturer_id = $1"
	args := []any{manufacturerID}

	switch {
	case filter.OrderPrefix != "":
		where += " AND order_number ILIKE $2"
		args = append(args, filter.OrderPrefix+"%")
	case filter.OrderContains != "":
		where += " AND order_number ILIKE $2"
		args = append(args, "%"+filter.OrderContains+"%")
	case filter.Term != "":
		where += " AND (order_number ILIKE $2 OR name ILIKE $2)"
		args = append(args, "%"+filter.Term+"%")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY order_number NULLS LAST LIMIT $%d`,
		productColumns, where, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// FindProductByKNXID 根据产品目录主标识获取产品
func (r *PostgresCatalogRepository) FindProductByKNXID(ctx context.Context, knxProductID string) (*domain.Product, error) {
	if knxProductID == "" {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products WHERE knx_product_id = $1`, productColumns)
	return r.queryOneProduct(ctx, query, knxProductID)
}

// FindProductByID 根据内部 id 获取产品
func (r *PostgresCatalogRepository) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.queryOneProduct(ctx, query, id)
}

// InsertProduct 插入 provisional 产品记录
func (r *PostgresCatalogRepository) InsertProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products
			(id, knx_product_id, manufacturer_id, name, order_number, description, category,
			 medium_types, confidence, status, source_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.KNXProductID,
		p.ManufacturerID,
		p.Name,
		p.OrderNumber,
		p.Description,
		p.Category,
		p.MediumTypes,
		p.Confidence,
		p.Status,
		p.SourceCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// CountRelated 统计产品的关联记录数
func (r *PostgresCatalogRepository) CountRelated(ctx context.Context, productID, kind string) (int, error) {
	table, ok := relatedTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown related kind: %s", kind)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE product_id = $1`, table)
	var count int
	if err := r.db.QueryRowContext(ctx, query, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (r *PostgresCatalogRepository) queryOneProduct(ctx context.Context, query string, arg any) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	p, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.KNXProductID,
		&p.ManufacturerID,
		&p.Name,
		&p.OrderNumber,
		&p.Description,
		&p.Category,
		&p.MediumTypes,
		&p.Confidence,
		&p.Status,
		&p.SourceCount,
		&p.Specifications,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &p, nil
}
