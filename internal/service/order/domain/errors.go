package domain

import "github.com/pkg/errors"

var (
	// 客户端输入错误：同步返回给调用方，不会自动重试
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("operation not permitted in current status")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConcurrentUpdate 表示乐观锁版本号不匹配，订单已被其他写入者修改
	ErrConcurrentUpdate = errors.New("order was modified concurrently")

	// 异步处理错误：只影响当前消息，由消息通道重新投递
	ErrPublishFailure    = errors.New("event publish failed")
	ErrProcessingFailure = errors.New("event processing failed")

	// ErrMalformedEvent 是无法解码的事件，重试没有意义
	ErrMalformedEvent = errors.Wrap(ErrProcessingFailure, "malformed event")
)
