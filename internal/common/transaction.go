package common

import "fmt"

// Transaction records one fill. Price is always the resting order's price.
type Transaction struct {
	StockID  string `json:"stockId"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %d @ %d", t.StockID, t.Quantity, t.Price)
}
