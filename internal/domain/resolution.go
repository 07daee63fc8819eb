package domain

// 解析终态（resolved=false 时的 status 字段）
const (
	StatusUnknownManufacturer = "unknown_manufacturer"
	StatusNotFound            = "not_found"
	StatusDiscovering         = "discovering"
)

// ParsedSegments KNX ID 解析片段（纯值对象，随请求生灭）
type ParsedSegments struct {
	Raw             string   `json:"raw"`
	ManufacturerID  string   `json:"manufacturerId,omitempty"`
	ManufacturerHex string   `json:"manufacturerHex,omitempty"`
	HardwareID      string   `json:"hardwareId,omitempty"`
	OrderRef        string   `json:"orderRef,omitempty"`
	ProgramID       string   `json:"programId,omitempty"`
	ProgramNumber   string   `json:"programNumber,omitempty"`
	ProgramVersion  string   `json:"programVersion,omitempty"`
	SearchTerms     []string `json:"searchTerms"`
}

// Guess 外部文本生成接口返回的产品推断
type Guess struct {
	ProductName string   `json:"productName"`
	OrderNumber string   `json:"orderNumber"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Confidence  float64  `json:"confidence"`
	SearchTerms []string `json:"searchTerms,omitempty"`
}

// RelatedLink 关联子资源的 {count, href}
type RelatedLink struct {
	Count int    `json:"count"`
	Href  string `json:"href"`
}

// ResolutionResult 解析管道的唯一对外输出，按请求重建，不落库
// resolved=true 当且仅当 Product 非空；Status 仅在 resolved=false 时有意义。
type ResolutionResult struct {
	KNXID                string           `json:"knxId"`
	Segments             ParsedSegments   `json:"segments"`
	Resolved             bool             `json:"resolved"`
	Status               string           `json:"status,omitempty"`
	Message              string           `json:"message,omitempty"`
	RetryAfter           int              `json:"retryAfter,omitempty"`
	Ambiguous            bool             `json:"ambiguous,omitempty"`
	Manufacturer         *ManufacturerRef `json:"manufacturer"`
	Product              *ProductView     `json:"product"`
	Interpretation       *Guess           `json:"interpretation,omitempty"`
	CommunicationObjects *RelatedLink     `json:"communicationObjects"`
	Parameters           *RelatedLink     `json:"parameters"`
	Specifications       *RelatedLink     `json:"specifications"`
}
