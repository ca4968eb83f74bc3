package dto

import "time"

type ClienteFilter struct {
	Q     string `form:"q"`
	Page  int    `form:"page,default=1"   validate:"min=1"`
	Limit int    `form:"limit,default=20" validate:"min=1,max=100"`
}

type ClienteResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Rut         string     `json:"rut"`
	Phone       string     `json:"phone"`
	TotalSpent  int64      `json:"total_spent"`
	TotalOrders int        `json:"total_orders"`
	LastOrderAt *time.Time `json:"last_order_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ClienteListResponse struct {
	Data  []ClienteResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
