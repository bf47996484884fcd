// internal/service/order/application/settlement.go
package application

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// CoinFlipOutcome 是默认的结算结果来源：成功与失败各占一半
type CoinFlipOutcome struct{}

func (CoinFlipOutcome) Succeeded() bool {
	return rand.IntN(2) == 0
}

// SettlementSimulator 模拟支付结算：等待 delay，然后向结果来源取一次结果。
type SettlementSimulator struct {
	delay   time.Duration
	outcome port.SettlementOutcomeSource
}

func NewSettlementSimulator(delay time.Duration, outcome port.SettlementOutcomeSource) *SettlementSimulator {
	if outcome == nil {
		outcome = CoinFlipOutcome{}
	}
	return &SettlementSimulator{delay: delay, outcome: outcome}
}

// Settle 在等待期间响应 ctx 取消；被取消时返回包装了 ctx.Err() 的 ErrProcessingFailure，绝不视为成功。
func (s *SettlementSimulator) Settle(ctx context.Context) (bool, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			metrics.SettlementOutcomes.WithLabelValues("interrupted").Inc()
			// ErrProcessingFailure 和 ctx.Err() 都要能被 errors.Is 匹配，pkg/errors 一次只能包一个，所以用双 %w
			return false, fmt.Errorf("%w: settlement interrupted: %w", domain.ErrProcessingFailure, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		metrics.SettlementOutcomes.WithLabelValues("interrupted").Inc()
		// 同上，保留两个错误链
		return false, fmt.Errorf("%w: settlement interrupted: %w", domain.ErrProcessingFailure, err)
	}

	ok := s.outcome.Succeeded()
	if ok {
		metrics.SettlementOutcomes.WithLabelValues("success").Inc()
	} else {
		metrics.SettlementOutcomes.WithLabelValues("failure").Inc()
	}
	return ok, nil
}
