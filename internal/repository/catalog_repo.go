package repository

import (
	"context"

	"knx-resolve/internal/domain"
)

// CatalogRepository 产品目录 Repository 接口
// 使用强类型领域模型，不使用map[string]any
// 设计原则：Repository层只负责数据访问，匹配策略由 resolver 层决定
type CatalogRepository interface {
	// FindManufacturerByCode 根据 KNX 厂商编码（"M-XXXX"）获取厂商
	// 未命中返回 (nil, nil)
	FindManufacturerByCode(ctx context.Context, code string) (*domain.Manufacturer, error)

	// FindProducts 按过滤条件查询某厂商的产品
	// 过滤条件互斥使用（一次只设置一个），见 ProductsFilter
	FindProducts(ctx context.Context, manufacturerID string, filter ProductsFilter) ([]*domain.Product, error)

	// FindProductByKNXID 根据产品目录主标识（"M-XXXX_H-..."）获取产品
	// 未命中返回 (nil, nil)
	FindProductByKNXID(ctx context.Context, knxProductID string) (*domain.Product, error)

	// FindProductByID 根据内部 id 获取产品，未命中返回 (nil, nil)
	FindProductByID(ctx context.Context, id string) (*domain.Product, error)

	// InsertProduct 插入 provisional 产品记录
	InsertProduct(ctx context.Context, p *domain.Product) error

	// CountRelated 统计产品的关联记录数
	// kind 取 domain.RelatedCommunicationObjects / RelatedParameters / RelatedSpecifications
	CountRelated(ctx context.Context, productID, kind string) (int, error)
}

// ProductsFilter 产品查询过滤器
// 三种匹配方式对应 lookup 的三类查询，均为大小写不敏感（ILIKE）
type ProductsFilter struct {
	OrderPrefix   string // order_number 前缀匹配
	OrderContains string // order_number 包含匹配
	Term          string // order_number 或 name 包含匹配
	Limit         int    // 0 表示默认 5
}
