package domain

// Shop field bounds
const (
	NameMinLength        = 3
	NameMaxLength        = 32
	DescriptionMaxLength = 100
)

// Price bounds, applied to both buy and sell prices
const (
	PriceMin = 0.01
	PriceMax = 1_000_000.0
)

// StockUnlimited is the sentinel stock value meaning "never runs out".
// Admin shops behave as unlimited regardless of the stored value.
const StockUnlimited = -1

// Well-known shop statistic names
const (
	StatTotalSalesVolume = "total-sales-volume"
	StatItemsSold        = "items-sold"
	StatItemsBought      = "items-bought"
	StatTaxPaid          = "tax-paid"
)
