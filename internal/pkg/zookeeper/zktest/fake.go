// Package zktest 提供内存版的 ZooKeeper 节点存储，用于测试分布式锁。
package zktest

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
)

// FakeNodes 模拟节点树、受保护的顺序节点和 ExistsW 的一次性 watch
type FakeNodes struct {
	mu       sync.Mutex
	nodes    map[string]bool
	seq      int
	watchers map[string][]chan zk.Event
}

func NewFakeNodes() *FakeNodes {
	return &FakeNodes{nodes: map[string]bool{"/": true}, watchers: make(map[string][]chan zk.Event)}
}

func (f *FakeNodes) Exists(p string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[p], &zk.Stat{}, nil
}

func (f *FakeNodes) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	f.watchers[p] = append(f.watchers[p], ch)
	return f.nodes[p], &zk.Stat{}, ch, nil
}

func (f *FakeNodes) Create(p string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[p] {
		return "", zk.ErrNodeExists
	}
	if !f.nodes[path.Dir(p)] {
		return "", zk.ErrNoNode
	}
	f.nodes[p] = true
	return p, nil
}

func (f *FakeNodes) CreateProtectedEphemeralSequential(p string, _ []byte, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, base := path.Split(p)
	if !f.nodes[strings.TrimSuffix(dir, "/")] {
		return "", zk.ErrNoNode
	}
	f.seq++
	node := fmt.Sprintf("%s_c_%s-%s%010d", dir, uuid.NewString()[:8], base, f.seq)
	f.nodes[node] = true
	return node, nil
}

func (f *FakeNodes) Children(p string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[p] {
		return nil, nil, zk.ErrNoNode
	}
	var out []string
	for n := range f.nodes {
		if n != p && path.Dir(n) == p {
			out = append(out, path.Base(n))
		}
	}
	return out, &zk.Stat{}, nil
}

func (f *FakeNodes) Delete(p string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.nodes[p] {
		return zk.ErrNoNode
	}
	delete(f.nodes, p)
	for _, ch := range f.watchers[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
	}
	delete(f.watchers, p)
	return nil
}

// Count 返回子节点数量，便于断言锁节点被清理
func (f *FakeNodes) Count(dir string) int {
	children, _, err := f.Children(dir)
	if err != nil {
		return 0
	}
	return len(children)
}
