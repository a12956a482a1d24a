package orderstate

import (
	"errors"
	"testing"
	"time"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/models"
)

func placedOrder(state string) *models.Order {
	now := time.Now()
	return &models.Order{
		State:         state,
		Active:        true,
		CustomerEmail: "buyer@example.com",
		ShippingAddress: models.Address{
			FullName:    "测试买家",
			StreetLine1: "测试路 1 号",
			City:        "上海",
			CountryCode: "CN",
		},
		PlacedAt: &now,
	}
}

func TestTransitionPlaceOrder(t *testing.T) {
	machine := DefaultMachine()
	order := &models.Order{
		State:         constants.OrderStateAddingItems,
		Active:        true,
		CustomerEmail: "buyer@example.com",
		ShippingAddress: models.Address{
			FullName:    "测试买家",
			StreetLine1: "测试路 1 号",
			City:        "上海",
			CountryCode: "CN",
		},
	}
	if err := machine.Transition(order, constants.OrderStateArrangingPayment); err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if order.State != constants.OrderStateArrangingPayment {
		t.Fatalf("unexpected state: %s", order.State)
	}
	if order.PlacedAt == nil {
		t.Fatalf("expected placed_at to be set")
	}
	if !order.Active {
		t.Fatalf("expected order to stay active")
	}
}

func TestTransitionPlaceOrderRequiresCustomer(t *testing.T) {
	machine := DefaultMachine()
	order := &models.Order{
		State: constants.OrderStateAddingItems,
		ShippingAddress: models.Address{
			FullName:    "测试买家",
			StreetLine1: "测试路 1 号",
			City:        "上海",
			CountryCode: "CN",
		},
	}
	err := machine.Transition(order, constants.OrderStateArrangingPayment)
	var precondition *PreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTransitionPlaceOrderRequiresShippingAddress(t *testing.T) {
	machine := DefaultMachine()
	order := &models.Order{
		State:         constants.OrderStateAddingItems,
		CustomerEmail: "buyer@example.com",
	}
	err := machine.Transition(order, constants.OrderStateArrangingPayment)
	var precondition *PreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	machine := DefaultMachine()
	order := &models.Order{State: constants.OrderStateAddingItems}
	err := machine.Transition(order, constants.OrderStateShipped)
	var transition *TransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if transition.From != constants.OrderStateAddingItems || transition.To != constants.OrderStateShipped {
		t.Fatalf("unexpected transition error: %v", transition)
	}
	if len(transition.Allowed) == 0 {
		t.Fatalf("expected allowed states in error")
	}
	if order.State != constants.OrderStateAddingItems {
		t.Fatalf("failed transition must not mutate state")
	}
}

func TestTransitionNoChange(t *testing.T) {
	machine := DefaultMachine()
	order := placedOrder(constants.OrderStatePaymentSettled)
	if err := machine.Transition(order, constants.OrderStatePaymentSettled); !errors.Is(err, ErrTransitionNoChange) {
		t.Fatalf("expected no-change error, got %v", err)
	}
}

func TestTransitionModifyingTracksReturnState(t *testing.T) {
	machine := DefaultMachine()
	order := placedOrder(constants.OrderStatePaymentSettled)
	if err := machine.Transition(order, constants.OrderStateModifying); err != nil {
		t.Fatalf("enter modifying failed: %v", err)
	}
	if order.ReturnState != constants.OrderStatePaymentSettled {
		t.Fatalf("expected return state payment_settled, got %s", order.ReturnState)
	}

	// 补款路径保留回归状态
	if err := machine.Transition(order, constants.OrderStateArrangingAdditionalPayment); err != nil {
		t.Fatalf("enter additional payment failed: %v", err)
	}
	if order.ReturnState != constants.OrderStatePaymentSettled {
		t.Fatalf("additional payment must keep return state, got %s", order.ReturnState)
	}

	if err := machine.Transition(order, constants.OrderStatePaymentSettled); err != nil {
		t.Fatalf("return to settled failed: %v", err)
	}
	if order.ReturnState != "" {
		t.Fatalf("return state must be cleared, got %s", order.ReturnState)
	}
}

func TestTransitionModifyingRequiresPlacedOrder(t *testing.T) {
	machine := DefaultMachine()
	order := placedOrder(constants.OrderStatePaymentSettled)
	order.PlacedAt = nil
	err := machine.Transition(order, constants.OrderStateModifying)
	var precondition *PreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTerminalStates(t *testing.T) {
	machine := DefaultMachine()
	for _, state := range []string{constants.OrderStateDelivered, constants.OrderStateCancelled} {
		if !machine.IsTerminal(state) {
			t.Fatalf("expected %s to be terminal", state)
		}
		if got := machine.AllowedNext(state); len(got) != 0 {
			t.Fatalf("terminal state %s must have no successors, got %v", state, got)
		}
	}
	if machine.IsTerminal(constants.OrderStateShipped) {
		t.Fatalf("shipped must not be terminal")
	}
}

func TestTransitionToTerminalDeactivates(t *testing.T) {
	machine := DefaultMachine()
	order := placedOrder(constants.OrderStateArrangingPayment)
	if err := machine.Transition(order, constants.OrderStateCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if order.Active {
		t.Fatalf("cancelled order must be inactive")
	}
}
