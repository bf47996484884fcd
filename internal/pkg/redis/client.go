// internal/pkg/redis/client.go
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 的 UniversalClient，单节点与集群地址都可以使用。
type Client struct {
	client goredis.UniversalClient
}

// NewClient 创建客户端并做一次 PING 检查。addrs 格式为 "host1:port1,host2:port2"。
func NewClient(addrs, password string) (*Client, error) {
	var list []string
	for _, addr := range strings.Split(addrs, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			list = append(list, addr)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("redis: no address configured")
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        list,
		Password:     password,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis: ping failed")
	}
	return &Client{client: client}, nil
}

// GetClient 返回底层客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
