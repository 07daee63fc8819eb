package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"knx-resolve/internal/domain"
	"knx-resolve/internal/resolver"
	"knx-resolve/internal/store"

	"go.uber.org/zap"
)

// 命中结果的缓存 TTL，与响应的 Cache-Control max-age 一致
const resolveCacheTTL = time.Hour

// ResolveHandler KNX ID 解析 Handler
type ResolveHandler struct {
	resolver *resolver.Resolver
	cache    store.KV // 可为 nil（禁用缓存）
	logger   *zap.Logger
}

// NewResolveHandler 创建解析 Handler
func NewResolveHandler(res *resolver.Resolver, cache store.KV, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{
		resolver: res,
		cache:    cache,
		logger:   logger,
	}
}

// GetResolve 处理 GET /v1/resolve/{knxId}
func (h *ResolveHandler) GetResolve(w http.ResponseWriter, r *http.Request, knxID string) {
	if knxID == "" {
		writeJSON(w, http.StatusBadRequest, Fail(CodeBadRequest,
			"Invalid request. Use GET /v1/resolve/{knxId} or POST /v1/resolve with { knxIds: [...] }", nil))
		return
	}
	autoDiscover := r.URL.Query().Get("autoDiscover") != "false"

	// 命中结果一小时内直接回缓存
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey(knxID)); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			writeJSON(w, http.StatusOK, Ok(json.RawMessage(cached)))
			return
		}
	}

	result := h.resolver.Resolve(r.Context(), knxID, autoDiscover)

	if result.Resolved {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		h.cacheResult(r, knxID, result)
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// batchResolveRequest POST /v1/resolve 请求体
type batchResolveRequest struct {
	KNXIDs       []string `json:"knxIds"`
	AutoDiscover *bool    `json:"autoDiscover"`
}

// PostResolve 处理 POST /v1/resolve（批量）
func (h *ResolveHandler) PostResolve(w http.ResponseWriter, r *http.Request) {
	var req batchResolveRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(CodeBadRequest, "Invalid JSON body.", nil))
		return
	}
	if len(req.KNXIDs) == 0 || len(req.KNXIDs) > resolver.MaxBatchSize {
		writeJSON(w, http.StatusBadRequest, Fail(CodeBadRequest,
			"knxIds must contain 1-200 items.", map[string]any{"count": len(req.KNXIDs)}))
		return
	}
	autoDiscover := req.AutoDiscover == nil || *req.AutoDiscover

	result := h.resolver.ResolveBatch(r.Context(), req.KNXIDs, autoDiscover)
	writeJSON(w, http.StatusOK, Ok(result))
}

func cacheKey(knxID string) string {
	return "resolve:" + knxID
}

func (h *ResolveHandler) cacheResult(r *http.Request, knxID string, result *domain.ResolutionResult) {
	if h.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := h.cache.Set(r.Context(), cacheKey(knxID), string(payload), resolveCacheTTL); err != nil {
		h.logger.Warn("Resolve cache write failed", zap.String("knx_id", knxID), zap.Error(err))
	}
}
