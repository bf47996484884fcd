package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/zookeeper"
)

// SweepLockZKAdapter 是 port.SweepLock 的 ZooKeeper 实现。
// 每次尝试都会新建一个临时顺序节点，进程崩溃时会话过期，锁自动释放。
type SweepLockZKAdapter struct {
	nodes      zookeeper.NodeStore
	resourceID string
	wait       time.Duration
}

func NewSweepLockZKAdapter(nodes zookeeper.NodeStore, resourceID string) *SweepLockZKAdapter {
	return &SweepLockZKAdapter{nodes: nodes, resourceID: resourceID}
}

// WithWait 设置排队等待时间。为 0 时不等待，其他副本持锁即跳过本轮。
func (a *SweepLockZKAdapter) WithWait(wait time.Duration) *SweepLockZKAdapter {
	a.wait = wait
	return a
}

func (a *SweepLockZKAdapter) TryAcquire(ctx context.Context) (func(), bool, error) {
	lock, err := zookeeper.NewDistributedLock(a.nodes, a.resourceID)
	if err != nil {
		return nil, false, errors.Wrap(err, "prepare sweep lock")
	}

	if a.wait > 0 {
		err := lock.WithTimeout(a.wait).Lock()
		if errors.Is(err, zookeeper.ErrLockTimeout) {
			logger.Ctx(ctx).Debug().Str("resource", a.resourceID).Dur("wait", a.wait).Msg("Sweep lock still held elsewhere")
			return nil, false, nil
		}
		if err != nil {
			return nil, false, errors.Wrap(err, "wait sweep lock")
		}
	} else {
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, false, errors.Wrap(err, "try sweep lock")
		}
		if !acquired {
			return nil, false, nil
		}
	}

	release := func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resource", a.resourceID).Msg("Failed to release sweep lock")
		}
	}
	return release, true, nil
}
