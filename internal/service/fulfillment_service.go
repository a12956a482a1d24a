package service

import (
	"errors"
	"strings"

	"github.com/ordernext/internal/constants"
	"github.com/ordernext/internal/logger"
	"github.com/ordernext/internal/models"
	"github.com/ordernext/internal/orderstate"
	"github.com/ordernext/internal/queue"
	"github.com/ordernext/internal/repository"

	"gorm.io/gorm"
)

// FulfillmentService 履约服务：发货、送达与订单状态派生
type FulfillmentService struct {
	orderRepo       repository.OrderRepository
	fulfillmentRepo repository.FulfillmentRepository
	historyRepo     repository.HistoryRepository
	queueClient     *queue.Client
	orderMachine    *orderstate.Machine
	machine         *orderstate.FulfillmentMachine
}

// NewFulfillmentService 创建履约服务
func NewFulfillmentService(orderRepo repository.OrderRepository, fulfillmentRepo repository.FulfillmentRepository, historyRepo repository.HistoryRepository, queueClient *queue.Client) *FulfillmentService {
	return &FulfillmentService{
		orderRepo:       orderRepo,
		fulfillmentRepo: fulfillmentRepo,
		historyRepo:     historyRepo,
		queueClient:     queueClient,
		orderMachine:    orderstate.DefaultMachine(),
		machine:         orderstate.DefaultFulfillmentMachine(),
	}
}

// FulfillmentLineSpec 履约行输入
type FulfillmentLineSpec struct {
	OrderLineID uint
	Quantity    int
}

// CreateFulfillmentInput 创建履约输入
type CreateFulfillmentInput struct {
	Method       string
	TrackingCode string
	Lines        []FulfillmentLineSpec
	AdminID      uint
}

// fulfillableStates 允许创建履约的订单状态
func fulfillableState(state string) bool {
	switch state {
	case constants.OrderStatePaymentSettled,
		constants.OrderStateShipped,
		constants.OrderStatePartiallyDelivered:
		return true
	}
	return false
}

// CreateFulfillment 为订单行创建履约；数量计入已履约额度
func (s *FulfillmentService) CreateFulfillment(orderID uint, input CreateFulfillmentInput) (*models.Fulfillment, error) {
	if len(input.Lines) == 0 {
		return nil, ErrFulfillmentEmptyLines
	}
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !fulfillableState(order.State) {
		return nil, ErrFulfillmentStateInvalid
	}

	fulfillment := &models.Fulfillment{
		OrderID:      order.ID,
		State:        constants.FulfillmentStatePending,
		Method:       strings.TrimSpace(input.Method),
		TrackingCode: strings.TrimSpace(input.TrackingCode),
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		for _, spec := range input.Lines {
			if spec.Quantity <= 0 {
				return ErrNegativeQuantity
			}
			line := order.LineByID(spec.OrderLineID)
			if line == nil {
				return ErrOrderLineNotFound
			}
			if spec.Quantity > line.FulfillableQuantity() {
				return ErrFulfillmentExceedsHeadroom
			}
			line.FulfilledQuantity += spec.Quantity
			if err := orderRepo.SaveLine(line); err != nil {
				return err
			}
			fulfillment.Lines = append(fulfillment.Lines, models.FulfillmentLine{
				OrderLineID: line.ID,
				Quantity:    spec.Quantity,
			})
		}
		if err := s.fulfillmentRepo.WithTx(tx).Create(fulfillment); err != nil {
			return err
		}
		return s.historyRepo.WithTx(tx).Append(&models.HistoryEntry{
			OrderID: order.ID,
			Type:    constants.HistoryTypeFulfillment,
			Data: models.JSON{
				"fulfillment_id": fulfillment.ID,
				"method":         fulfillment.Method,
				"tracking_code":  fulfillment.TrackingCode,
			},
			AdministratorID: input.AdminID,
			IsPublic:        true,
		})
	})
	if err != nil {
		return nil, err
	}
	return fulfillment, nil
}

// TransitionFulfillment 执行履约状态迁移并派生订单状态
func (s *FulfillmentService) TransitionFulfillment(fulfillmentID uint, target string, adminID uint) (*models.Fulfillment, error) {
	fulfillment, err := s.getFulfillment(fulfillmentID)
	if err != nil {
		return nil, err
	}
	from := fulfillment.State
	if err := s.machine.Transition(fulfillment, target); err != nil {
		return nil, err
	}

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"shipped_at":   fulfillment.ShippedAt,
			"delivered_at": fulfillment.DeliveredAt,
		}
		if err := s.fulfillmentRepo.WithTx(tx).UpdateState(fulfillment.ID, fulfillment.State, updates); err != nil {
			return err
		}
		// 取消的履约释放已履约额度
		if target == constants.FulfillmentStateCancelled {
			orderRepo := s.orderRepo.WithTx(tx)
			order, err := orderRepo.GetByID(fulfillment.OrderID)
			if err != nil {
				return err
			}
			if order == nil {
				return ErrOrderNotFound
			}
			for _, fl := range fulfillment.Lines {
				line := order.LineByID(fl.OrderLineID)
				if line == nil {
					continue
				}
				line.FulfilledQuantity -= fl.Quantity
				if line.FulfilledQuantity < 0 {
					line.FulfilledQuantity = 0
				}
				if err := orderRepo.SaveLine(line); err != nil {
					return err
				}
			}
		}
		return s.historyRepo.WithTx(tx).Append(&models.HistoryEntry{
			OrderID: fulfillment.OrderID,
			Type:    constants.HistoryTypeFulfillmentTransition,
			Data: models.JSON{
				"fulfillment_id": fulfillment.ID,
				"from":           from,
				"to":             target,
			},
			AdministratorID: adminID,
			IsPublic:        true,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.deriveOrderState(fulfillment.OrderID, adminID); err != nil {
		logger.Warnw("order_state_derive_failed", "order_id", fulfillment.OrderID, "error", err)
	}
	return fulfillment, nil
}

// SuggestedNextState 推荐的下一个履约状态
func (s *FulfillmentService) SuggestedNextState(fulfillmentID uint) (string, error) {
	fulfillment, err := s.getFulfillment(fulfillmentID)
	if err != nil {
		return "", err
	}
	return s.machine.SuggestedNextState(fulfillment.State), nil
}

// ListFulfillments 获取订单的全部履约记录
func (s *FulfillmentService) ListFulfillments(orderID uint) ([]models.Fulfillment, error) {
	return s.fulfillmentRepo.ListByOrder(orderID)
}

// deriveOrderState 按履约覆盖情况推进订单状态
func (s *FulfillmentService) deriveOrderState(orderID uint, adminID uint) error {
	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}
	if !fulfillableState(order.State) {
		return nil
	}

	fulfillments, err := s.fulfillmentRepo.ListByOrder(orderID)
	if err != nil {
		return err
	}

	deliveredByLine := map[uint]int{}
	shippedByLine := map[uint]int{}
	for _, f := range fulfillments {
		for _, fl := range f.Lines {
			switch f.State {
			case constants.FulfillmentStateDelivered:
				deliveredByLine[fl.OrderLineID] += fl.Quantity
				shippedByLine[fl.OrderLineID] += fl.Quantity
			case constants.FulfillmentStateShipped:
				shippedByLine[fl.OrderLineID] += fl.Quantity
			}
		}
	}

	allDelivered := true
	anyDelivered := false
	allShipped := true
	for _, line := range order.Lines {
		required := line.Quantity - line.CancelledQuantity
		if required <= 0 {
			continue
		}
		if deliveredByLine[line.ID] >= required {
			anyDelivered = true
		} else {
			allDelivered = false
			if deliveredByLine[line.ID] > 0 {
				anyDelivered = true
			}
		}
		if shippedByLine[line.ID] < required {
			allShipped = false
		}
	}

	var target string
	switch {
	case allDelivered && anyDelivered:
		target = constants.OrderStateDelivered
	case anyDelivered:
		target = constants.OrderStatePartiallyDelivered
	case allShipped:
		target = constants.OrderStateShipped
	}
	if target == "" || target == order.State {
		return nil
	}

	from := order.State
	if err := s.orderMachine.Transition(order, target); err != nil {
		return err
	}
	if err := s.orderRepo.SaveWithVersion(order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrOrderVersionConflict
		}
		return err
	}
	if err := s.historyRepo.Append(&models.HistoryEntry{
		OrderID:         order.ID,
		Type:            constants.HistoryTypeStateTransition,
		Data:            models.JSON{"from": from, "to": target},
		AdministratorID: adminID,
		IsPublic:        true,
	}); err != nil {
		logger.Warnw("order_history_append_failed", "order_id", order.ID, "error", err)
	}
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderStateTransition(queue.OrderStateTransitionPayload{
			OrderID:   order.ID,
			FromState: from,
			ToState:   target,
		}); err != nil {
			logger.Warnw("enqueue_order_state_transition_failed", "order_id", order.ID, "error", err)
		}
	}
	return nil
}

func (s *FulfillmentService) getOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *FulfillmentService) getFulfillment(fulfillmentID uint) (*models.Fulfillment, error) {
	fulfillment, err := s.fulfillmentRepo.GetByID(fulfillmentID)
	if err != nil {
		return nil, err
	}
	if fulfillment == nil {
		return nil, ErrFulfillmentNotFound
	}
	return fulfillment, nil
}
