package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	backendTimeout = 5 * time.Second
	maxGoroutines  = 1000
)

// StateChecker 本地状态存储的健康检查
type StateChecker interface {
	Health() error
}

// BackendPinger 后端 API 可达性检查
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
//
// 存储不可用视为存活失败；后端不可达只影响就绪状态，客户端仍可展示本地缓存。
type HealthChecker struct {
	health  healthcheck.Handler
	store   StateChecker
	backend BackendPinger
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器，store 与 backend 均可为 nil
func NewHealthChecker(store StateChecker, backend BackendPinger, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		store:   store,
		backend: backend,
		logger:  logger.Named("health"),
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	if hc.store != nil {
		hc.health.AddLivenessCheck("state_store", hc.store.Health)
	}

	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))

	if hc.backend != nil {
		hc.health.AddReadinessCheck("backend", BackendCheck(hc.backend))
	}
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行健康检查，返回各组件状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if hc.store == nil {
		results["state_store"] = "NOT_CONFIGURED"
	} else if err := hc.store.Health(); err != nil {
		hc.logger.Warn("state store unhealthy", zap.Error(err))
		results["state_store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["state_store"] = "OK"
	}

	if hc.backend == nil {
		results["backend"] = "NOT_CONFIGURED"
	} else if err := BackendCheck(hc.backend)(); err != nil {
		results["backend"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["backend"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}

// Healthy 所有已配置组件都正常
func Healthy(results map[string]string) bool {
	for k, v := range results {
		if k == "timestamp" {
			continue
		}
		if v != "OK" && v != "NOT_CONFIGURED" {
			return false
		}
	}
	return true
}

// BackendCheck 后端 API 可达性检查
func BackendCheck(backend BackendPinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		return backend.Ping(ctx)
	}
}
