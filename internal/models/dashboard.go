package models

// Order is the subset of a Magento order the dashboard consumes.
type Order struct {
	IncrementID string      `json:"increment_id"`
	CreatedAt   string      `json:"created_at"` // provider format: 2006-01-02 15:04:05
	GrandTotal  float64     `json:"grand_total"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
}

type OrderItem struct {
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	QtyOrdered float64 `json:"qty_ordered"`
	RowTotal   float64 `json:"row_total"`
}

type Customer struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	CreatedAt string `json:"created_at"`
}

type Product struct {
	SKU              string             `json:"sku"`
	Name             string             `json:"name"`
	Price            float64            `json:"price"`
	Qty              float64            `json:"qty"`
	TypeID           string             `json:"type_id"`
	CustomAttributes []ProductAttribute `json:"custom_attributes"`
}

type ProductAttribute struct {
	AttributeCode string `json:"attribute_code"`
	Value         any    `json:"value"`
}

// ListResult is the provider-defined list envelope.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

// DashboardStats are the headline numbers for the selected window.
type DashboardStats struct {
	TotalOrders       int     `json:"totalOrders"`
	TotalCustomers    int     `json:"totalCustomers"`
	TotalProducts     int     `json:"totalProducts"`
	TotalRevenue      float64 `json:"totalRevenue"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	NewCustomers      int     `json:"newCustomers"`
	TotalValue        float64 `json:"totalValue"`
	ConversionRate    float64 `json:"conversionRate"`
}

// TimelinePoint is one day bucket of the revenue timeline.
type TimelinePoint struct {
	Date    string  `json:"date"` // 2006-01-02
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type BestSeller struct {
	SKU     string  `json:"sku"`
	Name    string  `json:"name"`
	Qty     float64 `json:"qty"`
	Revenue float64 `json:"revenue"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type TypeBreakdown struct {
	TypeID     string  `json:"typeId"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DashboardData is the composite result the loader caches and serves.
type DashboardData struct {
	Stats            DashboardStats  `json:"stats"`
	Timeline         []TimelinePoint `json:"timeline"`
	RecentOrders     []Order         `json:"recentOrders"`
	BestSellers      []BestSeller    `json:"bestSellers"`
	Customers        []Customer      `json:"customers"`
	CountryBreakdown []CountryCount  `json:"countryBreakdown"`
	TypeBreakdown    []TypeBreakdown `json:"typeBreakdown"`
}

// LoadState is the observable dashboard loader state.
type LoadState string

const (
	LoadStateIdle    LoadState = "idle"
	LoadStateLoading LoadState = "loading"
	LoadStateLoaded  LoadState = "loaded"
)
