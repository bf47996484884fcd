package port

// SettlementOutcomeSource 决定一次模拟结算是否成功。
// 默认实现是公平硬币，测试中可以注入固定结果。
type SettlementOutcomeSource interface {
	Succeeded() bool
}

// SettlementOutcomeFunc 允许用普通函数实现 SettlementOutcomeSource
type SettlementOutcomeFunc func() bool

func (f SettlementOutcomeFunc) Succeeded() bool { return f() }
