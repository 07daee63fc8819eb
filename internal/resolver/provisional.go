package resolver

import (
	"context"
	"database/sql"
	"strings"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// provisionalCreateConfidence 写入 provisional 记录的置信度门槛
// 达到门槛的推断直接以 approved 状态落库对外可见（策略值，非机制）。
const provisionalCreateConfidence = 0.7

// ProvisionalWriter 把足够可信的推断转成低信任目录记录，让后续请求可精确命中
type ProvisionalWriter struct {
	repo   repository.CatalogRepository
	logger *zap.Logger
}

// NewProvisionalWriter 创建 provisional 写入器
func NewProvisionalWriter(repo repository.CatalogRepository, logger *zap.Logger) *ProvisionalWriter {
	return &ProvisionalWriter{repo: repo, logger: logger}
}

// Create 从推断创建 provisional 产品记录
// 置信度不足或缺订货号时不写入；写入失败只记日志返回 nil，管道继续走 discovery。
// 成功后按 id 重读一遍，保证返回形状与目录查询一致。
func (w *ProvisionalWriter) Create(ctx context.Context, mfr *domain.Manufacturer, guess *domain.Guess) *domain.Product {
	if guess == nil || guess.Confidence < provisionalCreateConfidence || guess.OrderNumber == "" {
		return nil
	}

	id := "prod_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	p := &domain.Product{
		ID:             id,
		ManufacturerID: mfr.ID,
		Name:           guess.ProductName,
		OrderNumber:    sql.NullString{String: guess.OrderNumber, Valid: true},
		Category:       sql.NullString{String: orDefault(guess.Category, "other"), Valid: true},
		MediumTypes:    pq.StringArray{"TP"},
		Confidence:     sql.NullFloat64{Float64: guess.Confidence, Valid: true},
		Status:         domain.ProductStatusApproved,
	}
	if guess.Description != "" {
		p.Description = sql.NullString{String: guess.Description, Valid: true}
	}

	if err := w.repo.InsertProduct(ctx, p); err != nil {
		w.logger.Error("Provisional product insert failed",
			zap.String("product_id", id),
			zap.String("order_number", guess.OrderNumber),
			zap.Error(err),
		)
		return nil
	}

	created, err := w.repo.FindProductByID(ctx, id)
	if err != nil || created == nil {
		w.logger.Error("Provisional product re-read failed", zap.String("product_id", id), zap.Error(err))
		return nil
	}

	w.logger.Info("Created provisional product from oracle guess",
		zap.String("product_id", id),
		zap.String("name", guess.ProductName),
		zap.String("order_number", guess.OrderNumber),
		zap.Float64("confidence", guess.Confidence),
	)
	return created
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
