package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// Address 地址快照，下单/改单时整体复制，不引用客户档案
type Address struct {
	FullName    string `json:"full_name"`
	StreetLine1 string `json:"street_line1"`
	StreetLine2 string `json:"street_line2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// IsEmpty 判断地址是否为空
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.StreetLine1) == "" && strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.CountryCode) == ""
}

// Value 实现 driver.Valuer 接口
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner 接口
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}
