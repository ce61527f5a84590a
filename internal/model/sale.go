package model

import "time"

// SalesTable is the single table recreated on every load.
const SalesTable = "sales"

// Sale is one row of the sales table. Price is kept as the decimal text
// Redshift returns for numeric(10,2).
type Sale struct {
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
}

// LoadError is one row of stl_load_errors.
type LoadError struct {
	StartTime     time.Time `json:"start_time"`
	Filename      string    `json:"filename"`
	LineNumber    int64     `json:"line_number"`
	ColName       string    `json:"col_name"`
	Type          string    `json:"type"`
	RawFieldValue string    `json:"raw_field_value"`
	ErrCode       int64     `json:"err_code"`
	ErrReason     string    `json:"err_reason"`
}
