package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// handler 意外 panic 统一收敛为 500，不向外泄漏内部细节
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Handler panicked",
				zap.String("path", req.URL.Path),
				zap.Any("panic", rec),
			)
			writeJSON(w, http.StatusInternalServerError,
				Fail(CodeInternalError, "Internal server error", nil))
		}
	}()
	r.mux.ServeHTTP(w, req)
}

// RegisterResolveRoutes 注册解析管道路由
func (r *Router) RegisterResolveRoutes(h *ResolveHandler) {
	// batch
	r.Handle("/v1/resolve", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.PostResolve(w, req)
	})

	// single: /v1/resolve/{knxId}
	r.Handle("/v1/resolve/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(req.URL.Path, "/v1/resolve/")
		if decoded, err := url.PathUnescape(id); err == nil {
			id = decoded
		}
		h.GetResolve(w, req, id)
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/v1/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}
