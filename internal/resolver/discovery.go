package resolver

import (
	"context"
	"strings"
	"time"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/store"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	maxSearchQueries = 5
	maxPDFLinks      = 3 // 收满即提前停
	maxExtractCalls  = 2
	// discovery 在途标记 TTL，对齐对外建议的 retryAfter
	discoveryMarkerTTL = 2 * time.Minute
)

// 已知厂商官网域名（用于 site: 限定检索）
var manufacturerDomains = map[string]string{
	"Gira": "gira.de", "MDT": "mdt.de", "JUNG": "jung.de",
	"Siemens": "siemens.com", "ABB": "abb.com", "Schneider Electric": "se.com",
	"Hager": "hager.com", "Theben": "theben.de", "Weinzierl": "weinzierl.de",
}

// 厂商 → 抽取服务 source 标识
var manufacturerSources = map[string]string{
	"Gira": "gira", "MDT": "mdt", "JUNG": "jung", "Siemens": "siemens",
	"ABB": "abb", "Schneider Electric": "schneider", "Hager": "hager",
	"Theben": "theben", "Weinzierl": "weinzierl",
}

// searchResponse 检索服务响应（只关心 organic 链接）
type searchResponse struct {
	Organic []struct {
		Link string `json:"link"`
	} `json:"organic"`
}

// DiscoveryTrigger 异步补数管道触发器：检索 → 筛 PDF → 交给抽取服务
// 只在分离任务里运行，所有错误就地吞掉并记日志，绝不影响调用方响应。
// 无重试、无任务落库；同一标识的并发重复 discovery 由在途标记尽量抑制，
// 标记不可用时接受重复（与上游 dedup 逻辑配合）。
type DiscoveryTrigger struct {
	searchClient  *resty.Client
	extractClient *resty.Client
	searchKey     string
	extractKey    string
	inflight      store.KV // 可为 nil（未启用缓存时跳过在途标记）
	logger        *zap.Logger
	queryDelay    time.Duration
}

// NewDiscoveryTrigger 创建 discovery 触发器
// searchKey / extractKey 任一为空时 Run 是静默 no-op。
func NewDiscoveryTrigger(searchURL, searchKey, extractURL, extractKey string, inflight store.KV, logger *zap.Logger) *DiscoveryTrigger {
	return &DiscoveryTrigger{
		searchClient: resty.New().
			SetBaseURL(searchURL).
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("X-API-KEY", searchKey),
		extractClient: resty.New().
			SetBaseURL(extractURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Authorization", "Bearer "+extractKey),
		searchKey:  searchKey,
		extractKey: extractKey,
		inflight:   inflight,
		logger:     logger,
		queryDelay: 100 * time.Millisecond,
	}
}

// Enabled 两个外部凭据齐备才会真正触发
func (d *DiscoveryTrigger) Enabled() bool {
	return d.searchKey != "" && d.extractKey != ""
}

// Run 执行一轮 discovery
// term 列表取前 3 个拼查询；最多 5 条查询、收 3 个 PDF、抽前 2 个。
func (d *DiscoveryTrigger) Run(ctx context.Context, mfr *domain.Manufacturer, segments domain.ParsedSegments, searchTerms []string) {
	if !d.Enabled() {
		return
	}

	shortName := mfr.Name
	if mfr.ShortName.Valid {
		shortName = mfr.ShortName.String
	}

	if !d.claimInflight(ctx, mfr, searchTerms) {
		d.logger.Info("Discovery already in flight, skipping",
			zap.String("knx_id", segments.Raw),
			zap.String("manufacturer", shortName),
		)
		return
	}

	d.logger.Info("Discovery triggered",
		zap.String("knx_id", segments.Raw),
		zap.String("manufacturer", shortName),
		zap.Strings("search_terms", searchTerms),
	)

	queries := buildQueries(shortName, searchTerms)
	pdfURLs := d.collectPDFLinks(ctx, queries)

	if len(pdfURLs) > maxExtractCalls {
		pdfURLs = pdfURLs[:maxExtractCalls]
	}
	for _, pdfURL := range pdfURLs {
		d.submitExtraction(ctx, pdfURL, shortName, segments, searchTerms)
	}
}

func (d *DiscoveryTrigger) claimInflight(ctx context.Context, mfr *domain.Manufacturer, searchTerms []string) bool {
	if d.inflight == nil || len(searchTerms) == 0 {
		return true
	}
	key := "discover:" + mfr.ID + ":" + searchTerms[0]
	ok, err := d.inflight.SetNX(ctx, key, "1", discoveryMarkerTTL)
	if err != nil {
		// 标记不可用不阻断 discovery，接受可能的重复
		d.logger.Warn("Discovery inflight marker unavailable", zap.Error(err))
		return true
	}
	return ok
}

// buildQueries 组合去重后的检索语句（每个 term 配 site: 限定与品牌两种写法）
func buildQueries(shortName string, searchTerms []string) []string {
	siteDomain := manufacturerDomains[shortName]

	terms := searchTerms
	if len(terms) > 3 {
		terms = terms[:3]
	}

	seen := map[string]bool{}
	var queries []string
	add := func(q string) {
		if !seen[q] && len(queries) < maxSearchQueries {
			seen[q] = true
			queries = append(queries, q)
		}
	}
	for _, term := range terms {
		if siteDomain != "" {
			add(`site:` + siteDomain + ` "` + term + `" KNX datasheet filetype:pdf`)
		}
		add(shortName + ` "` + term + `" KNX datasheet filetype:pdf`)
		add(shortName + ` "` + term + `" KNX product datasheet filetype:pdf`)
	}
	return queries
}

func (d *DiscoveryTrigger) collectPDFLinks(ctx context.Context, queries []string) []string {
	var pdfURLs []string
	seen := map[string]bool{}

	for _, query := range queries {
		var result searchResponse
		resp, err := d.searchClient.R().
			SetContext(ctx).
			SetBody(map[string]any{"q": query, "num": 5, "gl": "de", "hl": "en"}).
			SetResult(&result).
			Post("/search")
		if err != nil || resp.IsError() {
			d.logger.Warn("Web search failed",
				zap.String("query", query),
				zap.Int("status_code", resp.StatusCode()),
				zap.Error(err),
			)
			continue
		}

		found := 0
		for _, r := range result.Organic {
			link := r.Link
			if strings.HasSuffix(strings.ToLower(link), ".pdf") && !seen[link] {
				seen[link] = true
				pdfURLs = append(pdfURLs, link)
				found++
			}
		}
		d.logger.Info("Web search done",
			zap.String("query", query),
			zap.Int("organic_results", len(result.Organic)),
			zap.Int("pdfs_found", found),
		)

		if len(pdfURLs) >= maxPDFLinks {
			break
		}
		time.Sleep(d.queryDelay) // rate-limit courtesy
	}

	return pdfURLs
}

func (d *DiscoveryTrigger) submitExtraction(ctx context.Context, pdfURL, shortName string, segments domain.ParsedSegments, searchTerms []string) {
	productName := "Unknown"
	if len(searchTerms) > 0 {
		productName = searchTerms[0]
	}
	orderNumber := segments.ProgramNumber
	if orderNumber == "" && len(searchTerms) > 0 {
		orderNumber = searchTerms[0]
	}
	source := manufacturerSources[shortName]
	if source == "" {
		source = "unknown"
	}

	resp, err := d.extractClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"pdf_url":      pdfURL,
			"product_name": productName,
			"order_number": orderNumber,
			"manufacturer": source,
			"category":     "unknown",
		}).
		Post("")
	if err != nil {
		d.logger.Warn("Extraction service call failed", zap.String("pdf_url", pdfURL), zap.Error(err))
		return
	}
	// 只记下游状态码，不关心响应体
	d.logger.Info("Extraction service call done",
		zap.String("pdf_url", pdfURL),
		zap.Int("status_code", resp.StatusCode()),
	)
}
