// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点

	defaultLockTimeout = 30 * time.Second
)

var ErrLockTimeout = errors.New("timeout waiting for lock")

// NodeStore 是锁用到的 ZooKeeper 节点操作，*Conn 满足该接口
type NodeStore interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	nodes    NodeStore
	path     string // 锁的路径，例如 /distributed_locks/order-expiration-sweeper
	lockNode string // 成功获取锁后，自己创建的节点路径
	timeout  time.Duration
}

// NewDistributedLock 创建一个新的分布式锁实例，并确保锁路径存在
func NewDistributedLock(nodes NodeStore, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(nodes, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{
		nodes:   nodes,
		path:    lockPath,
		timeout: defaultLockTimeout,
	}, nil
}

// WithTimeout 设置 Lock 的最长等待时间
func (l *DistributedLock) WithTimeout(timeout time.Duration) *DistributedLock {
	if timeout > 0 {
		l.timeout = timeout
	}
	return l
}

func ensureNode(nodes NodeStore, path string) error {
	exists, _, err := nodes.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check node %s", path)
	}
	if exists {
		return nil
	}
	_, err = nodes.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return errors.Wrapf(err, "create node %s", path)
	}
	return nil
}

// Lock 获取锁，拿不到时监听前一个节点并阻塞等待，最多等待 timeout。
// 超时或出错时会清理自己创建的节点。
func (l *DistributedLock) Lock() error {
	if err := l.createNode(); err != nil {
		return err
	}
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()

	for {
		children, err := l.sortedChildren()
		if err != nil {
			_ = l.Unlock()
			return err
		}

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		switch {
		case idx == 0:
			return nil
		case idx < 0:
			_ = l.Unlock()
			return errors.New("own lock node is missing, session may have expired")
		}

		// 不是最小节点，只监听前一个节点，避免惊群
		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.nodes.ExistsW(prevNodePath)
		if err != nil {
			_ = l.Unlock()
			return errors.Wrap(err, "failed to watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
		case <-deadline.C:
			_ = l.Unlock()
			return ErrLockTimeout
		}
	}
}

// TryLock 非阻塞地尝试获取锁。没有抢到时会清理自己创建的节点并返回 false。
func (l *DistributedLock) TryLock() (bool, error) {
	if err := l.createNode(); err != nil {
		return false, err
	}
	children, err := l.sortedChildren()
	if err != nil {
		_ = l.Unlock()
		return false, err
	}
	if strings.TrimPrefix(l.lockNode, l.path+"/") == children[0] {
		return true, nil
	}
	return false, l.Unlock()
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.nodes.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "failed to delete lock node")
	}
	l.lockNode = ""
	return nil
}

// createNode 在锁路径下创建一个临时顺序节点，格式为 /distributed_locks/resourceID/lock-
func (l *DistributedLock) createNode() error {
	nodePath, err := l.nodes.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential node")
	}
	l.lockNode = nodePath
	return nil
}

// sortedChildren 按序号排序子节点。受保护节点带有 _c_<guid>- 前缀，只能按末尾序号比较。
func (l *DistributedLock) sortedChildren() ([]string, error) {
	children, _, err := l.nodes.Children(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get children nodes")
	}
	if len(children) == 0 {
		return nil, errors.New("lock node vanished")
	}
	sort.Slice(children, func(i, j int) bool {
		return sequence(children[i]) < sequence(children[j])
	})
	return children, nil
}

func sequence(node string) string {
	if idx := strings.LastIndex(node, "lock-"); idx >= 0 {
		return node[idx+len("lock-"):]
	}
	return node
}
