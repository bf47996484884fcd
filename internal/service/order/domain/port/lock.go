package port

import "context"

// SweepLock 保证多副本部署时同一时刻只有一个实例执行超时回收。
type SweepLock interface {
	// TryAcquire 获取锁，最多等待实现配置的时间；acquired 为 false 时本轮应跳过。
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}
