package rules

import (
	"strings"
	"testing"

	"github.com/ordernext/internal/models"
)

func sampleOrder() *models.Order {
	return &models.Order{
		Lines: []models.OrderLine{
			{VariantID: 7, Quantity: 2, UnitPrice: models.NewMoneyFromInt(50)},
			{VariantID: 9, Quantity: 1, UnitPrice: models.NewMoneyFromInt(30)},
		},
	}
}

func TestValidateArgsMissingRequired(t *testing.T) {
	err := ValidateArgs(MinimumOrderAmountCondition{}, models.OperationConfig{Code: "minimum_order_amount"})
	if err == nil {
		t.Fatalf("expected missing arg error")
	}
	if !strings.Contains(err.Error(), "amount") {
		t.Fatalf("error must name the missing arg, got %v", err)
	}
}

func TestValidateArgsRejectsMalformedDecimal(t *testing.T) {
	cfg := models.OperationConfig{
		Code: "minimum_order_amount",
		Args: []models.ConfigArg{{Name: "amount", Value: "abc"}},
	}
	if err := ValidateArgs(MinimumOrderAmountCondition{}, cfg); err == nil {
		t.Fatalf("expected malformed decimal to be rejected")
	}
}

func TestMinimumOrderAmountCondition(t *testing.T) {
	cfg := models.OperationConfig{
		Code: "minimum_order_amount",
		Args: []models.ConfigArg{{Name: "amount", Value: "130"}},
	}
	ok, err := MinimumOrderAmountCondition{}.Check(sampleOrder(), cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !ok {
		t.Fatalf("subtotal 130 must meet threshold 130")
	}

	cfg.Args[0].Value = "130.01"
	ok, err = MinimumOrderAmountCondition{}.Check(sampleOrder(), cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ok {
		t.Fatalf("subtotal 130 must not meet threshold 130.01")
	}
}

func TestContainsVariantsCondition(t *testing.T) {
	cfg := models.OperationConfig{
		Code: "contains_variants",
		Args: []models.ConfigArg{{Name: "variant_ids", Value: "9,12"}},
	}
	ok, err := ContainsVariantsCondition{}.Check(sampleOrder(), cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !ok {
		t.Fatalf("order contains variant 9, must match")
	}

	cfg.Args[0].Value = "12"
	ok, err = ContainsVariantsCondition{}.Check(sampleOrder(), cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ok {
		t.Fatalf("order lacks variant 12, must not match")
	}
}

func TestPerItemRateCalculator(t *testing.T) {
	cfg := models.OperationConfig{
		Code: "per_item_rate",
		Args: []models.ConfigArg{{Name: "rate_per_item", Value: "2.5"}},
	}
	result, err := PerItemRateCalculator{}.Calculate(sampleOrder(), cfg)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if got := result.Price.String(); got != "7.50" {
		t.Fatalf("unexpected per item shipping: %s", got)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterCondition(MinimumOrderAmountCondition{}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := registry.RegisterCondition(MinimumOrderAmountCondition{}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
}

func TestRegistryUnknownCode(t *testing.T) {
	registry := DefaultRegistry()
	if _, err := registry.Action("unknown_action"); err == nil {
		t.Fatalf("unknown action must fail")
	}
	if _, err := registry.Checker("unknown_checker"); err == nil {
		t.Fatalf("unknown checker must fail")
	}
}

func TestCheckConditionsAllMustPass(t *testing.T) {
	registry := DefaultRegistry()
	order := sampleOrder()
	cfgs := models.OperationConfigList{
		{
			Code: "minimum_order_amount",
			Args: []models.ConfigArg{{Name: "amount", Value: "100"}},
		},
		{
			Code: "contains_variants",
			Args: []models.ConfigArg{{Name: "variant_ids", Value: "12"}},
		},
	}
	ok, err := registry.CheckConditions(order, cfgs)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ok {
		t.Fatalf("one failing condition must fail the set")
	}
}
