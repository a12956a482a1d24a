package rules

import (
	"fmt"

	"github.com/ordernext/internal/models"
)

// Registry 可配置操作注册表；进程启动时构建后只读
type Registry struct {
	conditions  map[string]PromotionCondition
	actions     map[string]PromotionAction
	checkers    map[string]ShippingChecker
	calculators map[string]ShippingCalculator
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		conditions:  make(map[string]PromotionCondition),
		actions:     make(map[string]PromotionAction),
		checkers:    make(map[string]ShippingChecker),
		calculators: make(map[string]ShippingCalculator),
	}
}

// RegisterCondition 注册促销条件
func (r *Registry) RegisterCondition(op PromotionCondition) error {
	if _, exists := r.conditions[op.Code()]; exists {
		return fmt.Errorf("promotion condition %q already registered", op.Code())
	}
	r.conditions[op.Code()] = op
	return nil
}

// RegisterAction 注册促销动作
func (r *Registry) RegisterAction(op PromotionAction) error {
	if _, exists := r.actions[op.Code()]; exists {
		return fmt.Errorf("promotion action %q already registered", op.Code())
	}
	r.actions[op.Code()] = op
	return nil
}

// RegisterChecker 注册运费资格检查器
func (r *Registry) RegisterChecker(op ShippingChecker) error {
	if _, exists := r.checkers[op.Code()]; exists {
		return fmt.Errorf("shipping checker %q already registered", op.Code())
	}
	r.checkers[op.Code()] = op
	return nil
}

// RegisterCalculator 注册运费计算器
func (r *Registry) RegisterCalculator(op ShippingCalculator) error {
	if _, exists := r.calculators[op.Code()]; exists {
		return fmt.Errorf("shipping calculator %q already registered", op.Code())
	}
	r.calculators[op.Code()] = op
	return nil
}

// Condition 解析促销条件
func (r *Registry) Condition(code string) (PromotionCondition, error) {
	op, ok := r.conditions[code]
	if !ok {
		return nil, fmt.Errorf("unknown promotion condition %q", code)
	}
	return op, nil
}

// Action 解析促销动作
func (r *Registry) Action(code string) (PromotionAction, error) {
	op, ok := r.actions[code]
	if !ok {
		return nil, fmt.Errorf("unknown promotion action %q", code)
	}
	return op, nil
}

// Checker 解析运费资格检查器
func (r *Registry) Checker(code string) (ShippingChecker, error) {
	op, ok := r.checkers[code]
	if !ok {
		return nil, fmt.Errorf("unknown shipping checker %q", code)
	}
	return op, nil
}

// Calculator 解析运费计算器
func (r *Registry) Calculator(code string) (ShippingCalculator, error) {
	op, ok := r.calculators[code]
	if !ok {
		return nil, fmt.Errorf("unknown shipping calculator %q", code)
	}
	return op, nil
}

// CheckConditions 依次执行条件集合，全部通过才算满足
func (r *Registry) CheckConditions(order *models.Order, cfgs models.OperationConfigList) (bool, error) {
	for _, cfg := range cfgs {
		op, err := r.Condition(cfg.Code)
		if err != nil {
			return false, err
		}
		if err := ValidateArgs(op, cfg); err != nil {
			return false, err
		}
		ok, err := op.Check(order, cfg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
