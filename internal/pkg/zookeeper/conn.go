// internal/pkg/zookeeper/conn.go
package zookeeper

import (
	"context"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"orderflow/internal/pkg/logger"
)

// Conn 封装了 ZooKeeper 连接
type Conn struct {
	*zk.Conn
}

// Connect 连接 ZooKeeper 集群，并在后台记录会话状态变化。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	if len(servers) == 0 {
		return nil, errors.New("zookeeper: no server configured")
	}
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper: connect")
	}
	go func() {
		for ev := range events {
			if ev.Type == zk.EventSession {
				logger.Ctx(context.Background()).Debug().Str("state", ev.State.String()).Msg("zookeeper session event")
			}
		}
	}()
	return &Conn{Conn: conn}, nil
}
