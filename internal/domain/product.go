package domain

import (
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
)

// Product 状态（status 列）
const (
	ProductStatusApproved      = "approved"
	ProductStatusPendingReview = "pending_review"
)

// related-record kinds accepted by CountRelated
const (
	RelatedCommunicationObjects = "communication_objects"
	RelatedParameters           = "parameters"
	RelatedSpecifications       = "technical_specifications"
)

// Product 对应 products 表
// 由 ingestion 或本服务的 provisional 路径创建，discovery 管道后续补全。
type Product struct {
	ID             string          `db:"id"`
	KNXProductID   sql.NullString  `db:"knx_product_id"` // "M-XXXX_H-..."
	ManufacturerID string          `db:"manufacturer_id"`
	Name           string          `db:"name"`
	OrderNumber    sql.NullString  `db:"order_number"`
	Description    sql.NullString  `db:"description"`
	Category       sql.NullString  `db:"category"`
	MediumTypes    pq.StringArray  `db:"medium_types"`
	Confidence     sql.NullFloat64 `db:"confidence"`
	Status         string          `db:"status"`
	SourceCount    int             `db:"source_count"`
	Specifications sql.NullString  `db:"specifications"` // JSONB passthrough
}

// ProductView 解析结果中携带的产品视图
type ProductView struct {
	ID             string          `json:"id"`
	KNXProductID   string          `json:"knxProductId,omitempty"`
	Name           string          `json:"name"`
	OrderNumber    string          `json:"orderNumber,omitempty"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	MediumTypes    []string        `json:"mediumTypes,omitempty"`
	Specifications json.RawMessage `json:"specifications,omitempty"`
}

// View 转换为解析结果视图
func (p *Product) View() *ProductView {
	v := &ProductView{
		ID:          p.ID,
		Name:        p.Name,
		MediumTypes: []string(p.MediumTypes),
	}
	if p.KNXProductID.Valid {
		v.KNXProductID = p.KNXProductID.String
	}
	if p.OrderNumber.Valid {
		v.OrderNumber = p.OrderNumber.String
	}
	if p.Description.Valid {
		v.Description = p.Description.String
	}
	if p.Category.Valid {
		v.Category = p.Category.String
	}
	if p.Specifications.Valid {
		v.Specifications = json.RawMessage(p.Specifications.String)
	}
	return v
}
