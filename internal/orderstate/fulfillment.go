package orderstate

import (
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
)

// FulfillmentGraph 履约状态迁移图
func FulfillmentGraph() map[string][]string {
	return map[string][]string{
		constants.FulfillmentStatePending: {
			constants.FulfillmentStateShipped,
			constants.FulfillmentStateCancelled,
		},
		constants.FulfillmentStateShipped: {
			constants.FulfillmentStateDelivered,
			constants.FulfillmentStateCancelled,
		},
		constants.FulfillmentStateDelivered: {},
		constants.FulfillmentStateCancelled: {},
	}
}

// FulfillmentMachine 履约状态机
type FulfillmentMachine struct {
	graph map[string][]string
}

// DefaultFulfillmentMachine 使用默认迁移图的履约状态机
func DefaultFulfillmentMachine() *FulfillmentMachine {
	return &FulfillmentMachine{graph: FulfillmentGraph()}
}

// AllowedNext 当前状态的合法后继状态
func (m *FulfillmentMachine) AllowedNext(state string) []string {
	next := m.graph[state]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// SuggestedNextState 推荐的下一个状态；仅为操作端提示，任何合法迁移都允许
func (m *FulfillmentMachine) SuggestedNextState(state string) string {
	switch state {
	case constants.FulfillmentStatePending:
		return constants.FulfillmentStateShipped
	case constants.FulfillmentStateShipped:
		return constants.FulfillmentStateDelivered
	}
	for _, next := range m.graph[state] {
		if next != constants.FulfillmentStateCancelled {
			return next
		}
	}
	return ""
}

// Transition 校验并执行履约状态迁移
func (m *FulfillmentMachine) Transition(fulfillment *models.Fulfillment, target string) error {
	if fulfillment.State == target {
		return ErrTransitionNoChange
	}
	allowed := m.graph[fulfillment.State]
	found := false
	for _, state := range allowed {
		if state == target {
			found = true
			break
		}
	}
	if !found {
		return &TransitionError{
			From:    fulfillment.State,
			To:      target,
			Allowed: m.AllowedNext(fulfillment.State),
		}
	}

	fulfillment.State = target
	now := time.Now()
	switch target {
	case constants.FulfillmentStateShipped:
		fulfillment.ShippedAt = &now
	case constants.FulfillmentStateDelivered:
		fulfillment.DeliveredAt = &now
	}
	return nil
}
