package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	State       string
	Code        string
	CustomerID  uint
	ActiveOnly  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// HistoryListFilter 查询订单历史的过滤条件
type HistoryListFilter struct {
	Page       int
	PageSize   int
	OrderID    uint
	Type       string
	PublicOnly bool
	SortDesc   bool
}

// PaymentListFilter 查询支付列表的过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	OrderID     uint
	Method      string
	State       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
