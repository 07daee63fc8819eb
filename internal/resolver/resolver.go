package resolver

import (
	"context"
	"fmt"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/repository"

	"go.uber.org/zap"
)

const (
	// MaxBatchSize 单次批量解析上限
	MaxBatchSize = 200
	// 建议客户端在 discovery 后重试的秒数
	retryAfterSeconds = 120
)

// Resolver KNX ID 解析编排器
// 每次 Resolve 是独立无状态的管道实例：parse → 目录匹配 → 推断 → provisional
// → discovery。前四步严格串行；discovery 通过 TaskRunner 分离，永不阻塞响应。
type Resolver struct {
	repo        repository.CatalogRepository
	lookup      *StoreLookup
	interpreter Interpreter // nil 表示未配置推断接口
	provisional *ProvisionalWriter
	discovery   *DiscoveryTrigger
	runner      *TaskRunner
	logger      *zap.Logger
}

// NewResolver 创建解析编排器
func NewResolver(
	repo repository.CatalogRepository,
	lookup *StoreLookup,
	interpreter Interpreter,
	provisional *ProvisionalWriter,
	discovery *DiscoveryTrigger,
	runner *TaskRunner,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		repo:        repo,
		lookup:      lookup,
		interpreter: interpreter,
		provisional: provisional,
		discovery:   discovery,
		runner:      runner,
		logger:      logger,
	}
}

// BatchStats 批量解析统计
type BatchStats struct {
	Total           int `json:"total"`
	ResolvedCount   int `json:"resolvedCount"`
	UnresolvedCount int `json:"unresolvedCount"`
}

// UnresolvedItem 批量解析中未命中的条目
type UnresolvedItem struct {
	KNXID    string                `json:"knxId"`
	Segments domain.ParsedSegments `json:"segments"`
	Status   string                `json:"status"`
}

// BatchResult 批量解析结果
type BatchResult struct {
	Resolved   map[string]*domain.ResolutionResult `json:"resolved"`
	Unresolved []UnresolvedItem                    `json:"unresolved"`
	Stats      BatchStats                          `json:"stats"`
}

// Resolve 解析单个 KNX ID
// 不返回 error：协作方失败一律降级为"该步骤无结果"继续落入下一策略。
func (r *Resolver) Resolve(ctx context.Context, knxID string, autoDiscover bool) *domain.ResolutionResult {
	segments := ParseKNXID(knxID)
	base := &domain.ResolutionResult{
		KNXID:    knxID,
		Segments: segments,
	}

	// 厂商必须先解析出来，否则产品匹配无从谈起
	if segments.ManufacturerID == "" {
		base.Status = domain.StatusUnknownManufacturer
		return base
	}
	mfr, err := r.repo.FindManufacturerByCode(ctx, segments.ManufacturerID)
	if err != nil {
		r.logger.Warn("Manufacturer lookup failed",
			zap.String("manufacturer_id", segments.ManufacturerID), zap.Error(err))
	}
	if mfr == nil {
		base.Status = domain.StatusUnknownManufacturer
		return base
	}
	base.Manufacturer = mfr.Ref()

	// 目录匹配
	if product, ambiguous := r.lookup.Lookup(ctx, mfr, segments); product != nil {
		return r.enrich(ctx, base, product, ambiguous)
	}

	// 推断 + provisional
	var guess *domain.Guess
	if r.interpreter != nil {
		g, err := r.interpreter.Interpret(ctx, mfr, segments)
		if err != nil {
			r.logger.Warn("Interpretation failed", zap.String("knx_id", knxID), zap.Error(err))
		}
		if g != nil {
			// 推断给出了名称/订货号——先回头用它再查一轮目录
			if product := r.lookup.LookupByGuess(ctx, mfr, g); product != nil {
				return r.enrich(ctx, base, product, false)
			}

			if created := r.provisional.Create(ctx, mfr, g); created != nil {
				allTerms := dropEmpty(append(append(append([]string{}, g.SearchTerms...), g.OrderNumber), segments.SearchTerms...))
				r.detachDiscovery(mfr, segments, allTerms)
				return r.enrich(ctx, base, created, false)
			}

			// 推断不足以落库，保留为上下文元数据
			guess = g
			base.Interpretation = g
		}
	}

	// 仍未命中：触发 discovery 或直接 not_found
	if autoDiscover {
		discoveryTerms := segments.SearchTerms
		if guess != nil {
			discoveryTerms = dropEmpty(append([]string{guess.OrderNumber, guess.ProductName}, segments.SearchTerms...))
		}
		r.detachDiscovery(mfr, segments, discoveryTerms)

		base.Status = domain.StatusDiscovering
		base.RetryAfter = retryAfterSeconds
		if guess != nil {
			base.Message = fmt.Sprintf(
				"Product identified as %q (%s) but not yet in database. Auto-discovery triggered. Retry in 2 minutes.",
				guess.ProductName, guess.OrderNumber)
		} else {
			base.Message = "Product not found. Auto-discovery triggered. Retry in 2 minutes."
		}
		return base
	}

	base.Status = domain.StatusNotFound
	return base
}

// ResolveBatch 逐个独立解析（不跨 id 共享 discovery）
// 入参长度校验（1..MaxBatchSize）由 HTTP 层完成。
func (r *Resolver) ResolveBatch(ctx context.Context, knxIDs []string, autoDiscover bool) *BatchResult {
	result := &BatchResult{
		Resolved: make(map[string]*domain.ResolutionResult),
	}

	for _, id := range knxIDs {
		res := r.Resolve(ctx, id, autoDiscover)
		if res.Resolved {
			result.Resolved[id] = res
		} else {
			status := res.Status
			if status == "" {
				status = domain.StatusNotFound
			}
			result.Unresolved = append(result.Unresolved, UnresolvedItem{
				KNXID:    id,
				Segments: res.Segments,
				Status:   status,
			})
		}
	}

	result.Stats = BatchStats{
		Total:           len(knxIDs),
		ResolvedCount:   len(result.Resolved),
		UnresolvedCount: len(result.Unresolved),
	}
	return result
}

// Wait 等待在途 discovery 结束（优雅退出用）
func (r *Resolver) Wait() {
	r.runner.Wait()
}

// enrich 给命中的产品挂上关联记录 {count, href}
// 计数失败不阻断：降级为 0，resolved 保持 true。
func (r *Resolver) enrich(ctx context.Context, base *domain.ResolutionResult, product *domain.Product, ambiguous bool) *domain.ResolutionResult {
	base.Resolved = true
	base.Status = ""
	base.Ambiguous = ambiguous
	base.Product = product.View()
	base.CommunicationObjects = r.relatedLink(ctx, product.ID, domain.RelatedCommunicationObjects, "communication-objects")
	base.Parameters = r.relatedLink(ctx, product.ID, domain.RelatedParameters, "parameters")
	base.Specifications = r.relatedLink(ctx, product.ID, domain.RelatedSpecifications, "specifications")
	return base
}

func (r *Resolver) relatedLink(ctx context.Context, productID, kind, slug string) *domain.RelatedLink {
	count, err := r.repo.CountRelated(ctx, productID, kind)
	if err != nil {
		r.logger.Warn("Related count failed",
			zap.String("product_id", productID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		count = 0
	}
	return &domain.RelatedLink{
		Count: count,
		Href:  "/v1/products/" + productID + "/" + slug,
	}
}

func (r *Resolver) detachDiscovery(mfr *domain.Manufacturer, segments domain.ParsedSegments, terms []string) {
	if r.discovery == nil || !r.discovery.Enabled() {
		return
	}
	// copy：分离任务不能引用请求生命周期内的切片被调用方复用
	termsCopy := append([]string(nil), terms...)
	r.runner.Go("discovery", func(ctx context.Context) {
		r.discovery.Run(ctx, mfr, segments, termsCopy)
	})
}

func dropEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
