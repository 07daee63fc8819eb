package domain

import "database/sql"

// Manufacturer 对应 manufacturers 表（KNX 厂商目录）
// Rows are maintained by the ingestion side; the resolver only reads them.
type Manufacturer struct {
	ID                      string         `db:"id"`
	KNXManufacturerID       string         `db:"knx_manufacturer_id"` // "M-XXXX"
	HexCode                 string         `db:"hex_code"`
	Name                    string         `db:"name"`
	ShortName               sql.NullString `db:"short_name"`
	Country                 sql.NullString `db:"country"`
	ProductCount            int            `db:"product_count"`
	ApplicationProgramCount int            `db:"application_program_count"`
}

// ManufacturerRef 解析结果中携带的厂商摘要
type ManufacturerRef struct {
	ID                string `json:"id"`
	KNXManufacturerID string `json:"knxManufacturerId"`
	Name              string `json:"name"`
	ShortName         string `json:"shortName,omitempty"`
}

// Ref 转换为解析结果摘要
func (m *Manufacturer) Ref() *ManufacturerRef {
	ref := &ManufacturerRef{
		ID:                m.ID,
		KNXManufacturerID: m.KNXManufacturerID,
		Name:              m.Name,
	}
	if m.ShortName.Valid {
		ref.ShortName = m.ShortName.String
	}
	return ref
}
