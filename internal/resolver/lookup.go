package resolver

import (
	"context"
	"strings"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/repository"

	"go.uber.org/zap"
)

// 短于 3 字符的搜索词噪音太大，lookup 层统一跳过
const minTermLength = 3

// StoreLookup 目录库匹配策略（按优先级依次尝试，首个可信命中即返回）
type StoreLookup struct {
	repo   repository.CatalogRepository
	logger *zap.Logger
}

// NewStoreLookup 创建目录库匹配器
func NewStoreLookup(repo repository.CatalogRepository, logger *zap.Logger) *StoreLookup {
	return &StoreLookup{repo: repo, logger: logger}
}

// Lookup 按策略顺序匹配产品
// 返回 (product, ambiguous)：ambiguous 表示多候选下的顺位best-guess（非精确命中）。
// 查询错误降级为"本策略无结果"，继续下一策略。
func (l *StoreLookup) Lookup(ctx context.Context, mfr *domain.Manufacturer, segments domain.ParsedSegments) (*domain.Product, bool) {
	// 策略1：程序号即订货号（Gira 等多数厂商适用）
	if segments.ProgramNumber != "" {
		if p, ambiguous, ok := l.byProgramNumber(ctx, mfr.ID, segments.ProgramNumber); ok {
			return p, ambiguous
		}
	}

	// 策略2：逐个搜索词匹配 order_number / name
	for _, term := range segments.SearchTerms {
		if len(term) < minTermLength {
			continue
		}
		if p, ok := l.byTerm(ctx, mfr.ID, term); ok {
			return p, false
		}
	}

	// 策略3：完整 knx_product_id 匹配
	if segments.ManufacturerID != "" && segments.HardwareID != "" {
		fullID := segments.ManufacturerID + "_H-" + segments.HardwareID
		p, err := l.repo.FindProductByKNXID(ctx, fullID)
		if err != nil {
			l.logger.Warn("knx_product_id lookup failed", zap.String("knx_product_id", fullID), zap.Error(err))
		} else if p != nil {
			return p, false
		}
	}

	return nil, false
}

func (l *StoreLookup) byProgramNumber(ctx context.Context, manufacturerID, programNumber string) (*domain.Product, bool, bool) {
	// 先试前缀："1038" → "1038 00"
	products, err := l.repo.FindProducts(ctx, manufacturerID, repository.ProductsFilter{
		OrderPrefix: programNumber,
		Limit:       1,
	})
	if err != nil {
		l.logger.Warn("order prefix lookup failed", zap.String("program_number", programNumber), zap.Error(err))
		return nil, false, false
	}
	if len(products) == 1 {
		return products[0], false, true
	}

	// 再试包含
	products, err = l.repo.FindProducts(ctx, manufacturerID, repository.ProductsFilter{
		OrderContains: programNumber,
	})
	if err != nil {
		l.logger.Warn("order contains lookup failed", zap.String("program_number", programNumber), zap.Error(err))
		return nil, false, false
	}
	if len(products) == 1 {
		return products[0], false, true
	}
	if len(products) > 1 {
		// 多候选：优先 order_number 前缀精确者，否则取首个（顺位 best-guess）
		for _, p := range products {
			if p.OrderNumber.Valid && strings.HasPrefix(p.OrderNumber.String, programNumber) {
				return p, false, true
			}
		}
		return products[0], true, true
	}

	return nil, false, false
}

func (l *StoreLookup) byTerm(ctx context.Context, manufacturerID, term string) (*domain.Product, bool) {
	products, err := l.repo.FindProducts(ctx, manufacturerID, repository.ProductsFilter{Term: term})
	if err != nil {
		l.logger.Warn("term lookup failed", zap.String("term", term), zap.Error(err))
		return nil, false
	}
	if len(products) == 1 {
		return products[0], true
	}
	if len(products) > 1 {
		lower := strings.ToLower(term)
		for _, p := range products {
			if p.OrderNumber.Valid && strings.Contains(strings.ToLower(p.OrderNumber.String), lower) {
				return p, true
			}
		}
	}
	return nil, false
}

// LookupByGuess 用推断结果的订货号/搜索词做第二轮目录匹配
func (l *StoreLookup) LookupByGuess(ctx context.Context, mfr *domain.Manufacturer, guess *domain.Guess) *domain.Product {
	if guess.OrderNumber != "" {
		clean := strings.ReplaceAll(guess.OrderNumber, " ", "")
		clean = strings.ReplaceAll(clean, "..", "")
		for _, candidate := range []string{clean, guess.OrderNumber} {
			if candidate == "" {
				continue
			}
			products, err := l.repo.FindProducts(ctx, mfr.ID, repository.ProductsFilter{
				OrderContains: candidate,
				Limit:         1,
			})
			if err != nil {
				l.logger.Warn("guess order lookup failed", zap.String("order_number", candidate), zap.Error(err))
				continue
			}
			if len(products) == 1 {
				return products[0]
			}
		}
	}

	for _, term := range guess.SearchTerms {
		if len(term) < minTermLength {
			continue
		}
		products, err := l.repo.FindProducts(ctx, mfr.ID, repository.ProductsFilter{Term: term, Limit: 1})
		if err != nil {
			l.logger.Warn("guess term lookup failed", zap.String("term", term), zap.Error(err))
			continue
		}
		if len(products) == 1 {
			return products[0]
		}
	}

	return nil
}
