package resolver

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// TaskRunner 分离任务执行器
// 任务在独立 goroutine 中以 background context 运行，结果/错误只记日志，
// 永不回传调用方；调用方响应不受任务影响。
type TaskRunner struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTaskRunner 创建分离任务执行器
func NewTaskRunner(logger *zap.Logger) *TaskRunner {
	return &TaskRunner{logger: logger}
}

// Go 启动一个分离任务
func (r *TaskRunner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Detached task panicked",
					zap.String("task", name),
					zap.Any("panic", rec),
				)
			}
		}()
		fn(context.Background())
	}()
}

// Wait 等待全部在途任务结束（测试与优雅退出用）
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
