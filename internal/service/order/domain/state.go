// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
// PENDING → PROCESSING → COMPLETED，或 PROCESSING → EXPIRED（超时）。
type Status string

const (
	StatusPending    Status = "PENDING"    // 已创建，等待异步处理
	StatusProcessing Status = "PROCESSING" // 正在结算
	StatusCompleted  Status = "COMPLETED"  // 结算成功（终态）
	StatusExpired    Status = "EXPIRED"    // 处理超时被回收（终态）
)

// ParseStatus 校验并返回状态值
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// IsTerminal 终态订单不可再变更
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

func (s Status) String() string {
	return string(s)
}
