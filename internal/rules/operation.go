package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ordernext/internal/models"

	"github.com/shopspring/decimal"
)

// 参数类型
const (
	ArgTypeString  = "string"
	ArgTypeInt     = "int"
	ArgTypeDecimal = "decimal"
	ArgTypeIDList  = "id_list"
)

// ArgSpec 可配置操作的参数定义
type ArgSpec struct {
	Name     string
	Type     string
	Required bool
}

// Operation 可配置操作的公共契约：code + 参数 schema
type Operation interface {
	Code() string
	Description() string
	ArgSpecs() []ArgSpec
}

// PromotionCondition 促销条件检查器
type PromotionCondition interface {
	Operation
	Check(order *models.Order, cfg models.OperationConfig) (bool, error)
}

// PromotionAction 促销动作：返回单件折扣金额（正数，叠加累计）
type PromotionAction interface {
	Operation
	PerUnitDiscount(order *models.Order, line *models.OrderLine, cfg models.OperationConfig) (models.Money, error)
}

// ShippingChecker 运费方式资格检查器
type ShippingChecker interface {
	Operation
	Check(order *models.Order, cfg models.OperationConfig) (bool, error)
}

// ShippingResult 运费计算结果
type ShippingResult struct {
	Price   models.Money // 不含税运费
	TaxRate models.Money // 税率（百分比）
}

// ShippingCalculator 运费计算器
type ShippingCalculator interface {
	Operation
	Calculate(order *models.Order, cfg models.OperationConfig) (ShippingResult, error)
}

// ValidateArgs 按操作的参数 schema 校验配置参数
func ValidateArgs(op Operation, cfg models.OperationConfig) error {
	for _, spec := range op.ArgSpecs() {
		raw, ok := cfg.Arg(spec.Name)
		if !ok || strings.TrimSpace(raw) == "" {
			if spec.Required {
				return fmt.Errorf("operation %s: missing required arg %q", op.Code(), spec.Name)
			}
			continue
		}
		if err := checkArgType(spec, raw); err != nil {
			return fmt.Errorf("operation %s: %w", op.Code(), err)
		}
	}
	return nil
}

func checkArgType(spec ArgSpec, raw string) error {
	switch spec.Type {
	case ArgTypeInt:
		if _, err := strconv.Atoi(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("arg %q must be an integer: %w", spec.Name, err)
		}
	case ArgTypeDecimal:
		if _, err := decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("arg %q must be a decimal: %w", spec.Name, err)
		}
	case ArgTypeIDList:
		if _, err := ParseIDList(raw); err != nil {
			return fmt.Errorf("arg %q must be a comma separated id list: %w", spec.Name, err)
		}
	case ArgTypeString, "":
		// 任意字符串
	default:
		return fmt.Errorf("arg %q has unknown type %q", spec.Name, spec.Type)
	}
	return nil
}

// DecimalArg 解析 decimal 参数
func DecimalArg(cfg models.OperationConfig, name string) (decimal.Decimal, error) {
	raw, ok := cfg.Arg(name)
	if !ok {
		return decimal.Zero, fmt.Errorf("missing arg %q", name)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal arg %q: %w", name, err)
	}
	return value, nil
}

// IDListArg 解析 id 列表参数
func IDListArg(cfg models.OperationConfig, name string) ([]uint, error) {
	raw, ok := cfg.Arg(name)
	if !ok {
		return nil, fmt.Errorf("missing arg %q", name)
	}
	return ParseIDList(raw)
}

// ParseIDList 解析逗号分隔的 id 列表
func ParseIDList(raw string) ([]uint, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(parsed))
	}
	return ids, nil
}
