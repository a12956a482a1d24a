package orderstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
)

// ErrTransitionNoChange 目标状态等于当前状态
var ErrTransitionNoChange = errors.New("order already in target state")

// TransitionError 非法状态迁移，携带合法的后继状态列表
type TransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %q to %q, allowed: [%s]",
		e.From, e.To, strings.Join(e.Allowed, ", "))
}

// PreconditionError 迁移前置条件不满足（区别于图结构错误）
type PreconditionError struct {
	To     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot transition order to %q: %s", e.To, e.Reason)
}

// DefaultGraph 订单状态迁移图；modifying 作为下单后的旁路分支
func DefaultGraph() map[string][]string {
	return map[string][]string{
		constants.OrderStateAddingItems: {
			constants.OrderStateArrangingPayment,
			constants.OrderStateCancelled,
		},
		constants.OrderStateArrangingPayment: {
			constants.OrderStateAddingItems,
			constants.OrderStatePaymentAuthorized,
			constants.OrderStatePaymentSettled,
			constants.OrderStateCancelled,
		},
		constants.OrderStatePaymentAuthorized: {
			constants.OrderStatePaymentSettled,
			constants.OrderStateModifying,
			constants.OrderStateCancelled,
		},
		constants.OrderStatePaymentSettled: {
			constants.OrderStateShipped,
			constants.OrderStatePartiallyDelivered,
			constants.OrderStateDelivered,
			constants.OrderStateModifying,
			constants.OrderStateCancelled,
		},
		constants.OrderStateShipped: {
			constants.OrderStatePartiallyDelivered,
			constants.OrderStateDelivered,
			constants.OrderStateModifying,
			constants.OrderStateCancelled,
		},
		constants.OrderStatePartiallyDelivered: {
			constants.OrderStateShipped,
			constants.OrderStateDelivered,
			constants.OrderStateModifying,
			constants.OrderStateCancelled,
		},
		constants.OrderStateModifying: {
			constants.OrderStatePaymentAuthorized,
			constants.OrderStatePaymentSettled,
			constants.OrderStateShipped,
			constants.OrderStatePartiallyDelivered,
			constants.OrderStateArrangingAdditionalPayment,
			constants.OrderStateCancelled,
		},
		constants.OrderStateArrangingAdditionalPayment: {
			constants.OrderStatePaymentAuthorized,
			constants.OrderStatePaymentSettled,
			constants.OrderStateShipped,
			constants.OrderStatePartiallyDelivered,
			constants.OrderStateCancelled,
		},
		constants.OrderStateDelivered: {},
		constants.OrderStateCancelled: {},
	}
}

// Machine 订单状态机
type Machine struct {
	graph map[string][]string
}

// NewMachine 用给定迁移图创建状态机
func NewMachine(graph map[string][]string) *Machine {
	return &Machine{graph: graph}
}

// DefaultMachine 使用默认迁移图的状态机
func DefaultMachine() *Machine {
	return NewMachine(DefaultGraph())
}

// AllowedNext 当前状态的合法后继状态
func (m *Machine) AllowedNext(state string) []string {
	next := m.graph[state]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CanTransition 判断迁移是否在图中
func (m *Machine) CanTransition(from, to string) bool {
	for _, state := range m.graph[from] {
		if state == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (m *Machine) IsTerminal(state string) bool {
	next, ok := m.graph[state]
	return ok && len(next) == 0
}

// Transition 校验并执行状态迁移；迁移副作用只在成功时生效
func (m *Machine) Transition(order *models.Order, target string) error {
	if order.State == target {
		return ErrTransitionNoChange
	}
	if !m.CanTransition(order.State, target) {
		return &TransitionError{
			From:    order.State,
			To:      target,
			Allowed: m.AllowedNext(order.State),
		}
	}
	if err := m.checkPreconditions(order, target); err != nil {
		return err
	}

	from := order.State
	order.State = target
	order.Active = !m.IsTerminal(target)

	switch target {
	case constants.OrderStateArrangingPayment:
		if from == constants.OrderStateAddingItems && order.PlacedAt == nil {
			now := time.Now()
			order.PlacedAt = &now
		}
	case constants.OrderStateModifying:
		order.ReturnState = from
	case constants.OrderStateArrangingAdditionalPayment:
		// 保留 ReturnState，补款完成后仍要回到原状态
	default:
		if from == constants.OrderStateModifying || from == constants.OrderStateArrangingAdditionalPayment {
			order.ReturnState = ""
		}
	}
	return nil
}

func (m *Machine) checkPreconditions(order *models.Order, target string) error {
	switch target {
	case constants.OrderStateArrangingPayment:
		if strings.TrimSpace(order.CustomerEmail) == "" {
			return &PreconditionError{To: target, Reason: "order has no customer"}
		}
		if order.ShippingAddress.IsEmpty() {
			return &PreconditionError{To: target, Reason: "order has no shipping address"}
		}
	case constants.OrderStateModifying:
		if order.PlacedAt == nil {
			return &PreconditionError{To: target, Reason: "order has not been placed"}
		}
	}
	return nil
}
