package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

const runLockKey = "scheduling_run_lock"

var ErrRunLocked = errors.New("已有排课任务正在运行，请稍后再试")

// 只有持有者才能释放锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func runCacheKey(id int64) string {
	return fmt.Sprintf("scheduling_run_%d", id)
}

func isFinished(run *domain.SchedulingRun) bool {
	return run.Status == domain.RunStatusSucceeded || run.Status == domain.RunStatusFailed
}

func (h *Handler) redisContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

// loadSchedulingRun 先查 redis 缓存，未命中时查数据库，已结束的运行会被写入缓存
func (h *Handler) loadSchedulingRun(parent context.Context, id int64) (*domain.SchedulingRun, error) {
	if h.redisClient != nil {
		ctx, cancel := h.redisContext(parent)
		data, err := h.redisClient.Get(ctx, runCacheKey(id)).Bytes()
		cancel()

		switch {
		case err == nil:
			run := &domain.SchedulingRun{}
			if err := json.Unmarshal(data, run); err == nil {
				return run, nil
			}
			slog.Warn("排课运行缓存已损坏", slog.Int64("run", id))
		case !errors.Is(err, redis.Nil):
			slog.Warn("读取排课运行缓存失败", slog.Int64("run", id), slog.String("error", err.Error()))
		}
	}

	run, err := h.repository.GetSchedulingRunByID(id)
	if err != nil {
		return nil, err
	}

	if isFinished(run) {
		h.cacheSchedulingRun(parent, run)
	}

	return run, nil
}

func (h *Handler) cacheSchedulingRun(parent context.Context, run *domain.SchedulingRun) {
	if h.redisClient == nil {
		return
	}

	data, err := json.Marshal(run)
	if err != nil {
		slog.Warn("序列化排课运行失败", slog.Int64("run", run.ID), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := h.redisContext(parent)
	defer cancel()

	expiration := time.Duration(h.config.Redis.ResultCacheExpiration) * time.Second
	if err := h.redisClient.Set(ctx, runCacheKey(run.ID), data, expiration).Err(); err != nil {
		slog.Warn("写入排课运行缓存失败", slog.Int64("run", run.ID), slog.String("error", err.Error()))
	}
}

func (h *Handler) invalidateSchedulingRun(parent context.Context, id int64) {
	if h.redisClient == nil {
		return
	}

	ctx, cancel := h.redisContext(parent)
	defer cancel()

	if err := h.redisClient.Del(ctx, runCacheKey(id)).Err(); err != nil {
		slog.Warn("删除排课运行缓存失败", slog.Int64("run", id), slog.String("error", err.Error()))
	}
}

// acquireRunLock 获取同步排课的全局锁，返回用于释放锁的函数
func (h *Handler) acquireRunLock(parent context.Context) (func(), error) {
	token := uuid.NewString()

	ctx, cancel := h.redisContext(parent)
	defer cancel()

	expiration := time.Duration(h.config.Redis.RunLockExpiration) * time.Second
	ok, err := h.redisClient.SetNX(ctx, runLockKey, token, expiration).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunLocked
	}

	release := func() {
		ctx, cancel := h.redisContext(context.Background())
		defer cancel()

		if err := releaseLockScript.Run(ctx, h.redisClient, []string{runLockKey}, token).Err(); err != nil {
			slog.Warn("释放排课锁失败", slog.String("error", err.Error()))
		}
	}

	return release, nil
}
