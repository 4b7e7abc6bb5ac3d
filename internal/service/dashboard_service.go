package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"techno-etl-service/internal/cache"
	"techno-etl-service/internal/models"
)

const (
	dashboardCacheTTL = 3 * time.Minute

	orderTimeLayout = "2006-01-02 15:04:05"
	dayLayout       = "2006-01-02"

	countryAttributeCode = "country_of_manufacture"
)

// OrderSource abstracts the Magento client so tests can inject fakes.
type OrderSource interface {
	GetOrders(ctx context.Context, from, to time.Time) (*models.ListResult[models.Order], error)
	GetCustomers(ctx context.Context) (*models.ListResult[models.Customer], error)
	GetProducts(ctx context.Context) (*models.ListResult[models.Product], error)
}

// DashboardService aggregates orders, customers and products for a
// time window into the dashboard composite. Failed fetches degrade to
// empty results; retry is left to the user's refresh.
type DashboardService struct {
	mu     sync.Mutex
	state  models.LoadState
	source OrderSource
	cache  *cache.Cache
}

func NewDashboardService(source OrderSource, c *cache.Cache) *DashboardService {
	return &DashboardService{
		state:  models.LoadStateIdle,
		source: source,
		cache:  c,
	}
}

// State reports the loader state (idle, loading, loaded).
func (s *DashboardService) State() models.LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InvalidateCache drops every cached dashboard window; a completed
// stock sync calls this so stale stock values never outlive the sync.
func (s *DashboardService) InvalidateCache() {
	s.cache.Invalidate("^dashboard:")
}

// GetDashboardData returns the composite for [start, end], computing it
// when the window is not cached or a refresh is forced.
func (s *DashboardService) GetDashboardData(ctx context.Context, start, end time.Time, refreshToken string, forceRefresh bool) *models.DashboardData {
	if refreshToken == "" {
		refreshToken = "default"
	}
	cacheKey := fmt.Sprintf("dashboard:%d:%d:%s", start.UnixMilli(), end.UnixMilli(), refreshToken)

	if !forceRefresh {
		if cached, ok := s.cache.Get(cacheKey).(*models.DashboardData); ok {
			return cached
		}
	}

	s.setState(models.LoadStateLoading)

	orders, customers, products := s.fetchAll(ctx, start, end)

	data := &models.DashboardData{
		Stats:            computeStats(orders, customers, products, start, end),
		Timeline:         buildTimeline(orders.Items, start, end),
		RecentOrders:     recentOrders(orders.Items, 10),
		BestSellers:      bestSellers(orders.Items, 10),
		Customers:        customers.Items,
		CountryBreakdown: countryBreakdown(products.Items, 8),
		TypeBreakdown:    typeBreakdown(products.Items),
	}

	s.cache.Set(cacheKey, data, dashboardCacheTTL)
	s.setState(models.LoadStateLoaded)

	return data
}

func (s *DashboardService) setState(state models.LoadState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// fetchAll launches the three provider fetches in parallel. A failing
// fetch resolves to an empty result so the dashboard still renders the
// rest of the window.
func (s *DashboardService) fetchAll(ctx context.Context, start, end time.Time) (*models.ListResult[models.Order], *models.ListResult[models.Customer], *models.ListResult[models.Product]) {
	orders := &models.ListResult[models.Order]{}
	customers := &models.ListResult[models.Customer]{}
	products := &models.ListResult[models.Product]{}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		result, err := s.source.GetOrders(ctx, start, end)
		if err != nil {
			log.Printf("Warning: orders fetch failed: %v", err)
			return
		}
		orders = result
	}()
	go func() {
		defer wg.Done()
		result, err := s.source.GetCustomers(ctx)
		if err != nil {
			log.Printf("Warning: customers fetch failed: %v", err)
			return
		}
		customers = result
	}()
	go func() {
		defer wg.Done()
		result, err := s.source.GetProducts(ctx)
		if err != nil {
			log.Printf("Warning: products fetch failed: %v", err)
			return
		}
		products = result
	}()

	wg.Wait()
	return orders, customers, products
}

func computeStats(orders *models.ListResult[models.Order], customers *models.ListResult[models.Customer], products *models.ListResult[models.Product], start, end time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		TotalOrders:    len(orders.Items),
		TotalCustomers: customers.TotalCount,
		TotalProducts:  products.TotalCount,
	}

	for _, order := range orders.Items {
		stats.TotalRevenue += order.GrandTotal
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue / float64(stats.TotalOrders)
	}

	for _, customer := range customers.Items {
		created, err := time.Parse(orderTimeLayout, customer.CreatedAt)
		if err != nil {
			continue
		}
		if !created.Before(start) && !created.After(end) {
			stats.NewCustomers++
		}
	}

	for _, product := range products.Items {
		stats.TotalValue += product.Price * product.Qty
	}

	if len(customers.Items) > 0 {
		stats.ConversionRate = float64(len(orders.Items)) / float64(len(customers.Items)) * 100
	}

	return stats
}

// buildTimeline initializes one bucket per day in the window, then
// accumulates orders into their creation day.
func buildTimeline(orders []models.Order, start, end time.Time) []models.TimelinePoint {
	buckets := make(map[string]*models.TimelinePoint)
	var days []string

	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		buckets[key] = &models.TimelinePoint{Date: key}
		days = append(days, key)
	}

	for _, order := range orders {
		created, err := time.Parse(orderTimeLayout, order.CreatedAt)
		if err != nil {
			log.Printf("Warning: unparseable order date %q on %s", order.CreatedAt, order.IncrementID)
			continue
		}
		bucket, ok := buckets[created.Format(dayLayout)]
		if !ok {
			continue
		}
		bucket.Orders++
		bucket.Revenue += order.GrandTotal
	}

	sort.Strings(days)
	timeline := make([]models.TimelinePoint, 0, len(days))
	for _, key := range days {
		timeline = append(timeline, *buckets[key])
	}
	return timeline
}

func recentOrders(orders []models.Order, limit int) []models.Order {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func bestSellers(orders []models.Order, limit int) []models.BestSeller {
	perSKU := make(map[string]*models.BestSeller)
	for _, order := range orders {
		for _, item := range order.Items {
			seller, ok := perSKU[item.SKU]
			if !ok {
				seller = &models.BestSeller{SKU: item.SKU, Name: item.Name}
				perSKU[item.SKU] = seller
			}
			seller.Qty += item.QtyOrdered
			seller.Revenue += item.RowTotal
		}
	}

	sellers := make([]models.BestSeller, 0, len(perSKU))
	for _, seller := range perSKU {
		sellers = append(sellers, *seller)
	}
	sort.Slice(sellers, func(i, j int) bool {
		return sellers[i].Qty > sellers[j].Qty
	})
	if len(sellers) > limit {
		sellers = sellers[:limit]
	}
	return sellers
}

func countryBreakdown(products []models.Product, limit int) []models.CountryCount {
	counts := make(map[string]int)
	for _, product := range products {
		for _, attr := range product.CustomAttributes {
			if attr.AttributeCode != countryAttributeCode {
				continue
			}
			if country, ok := attr.Value.(string); ok && country != "" {
				counts[country]++
			}
			break
		}
	}

	breakdown := make([]models.CountryCount, 0, len(counts))
	for country, count := range counts {
		breakdown = append(breakdown, models.CountryCount{Country: country, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Country < breakdown[j].Country
	})
	if len(breakdown) > limit {
		breakdown = breakdown[:limit]
	}
	return breakdown
}

func typeBreakdown(products []models.Product) []models.TypeBreakdown {
	counts := make(map[string]int)
	for _, product := range products {
		typeID := product.TypeID
		if typeID == "" {
			typeID = "simple"
		}
		counts[typeID]++
	}

	total := len(products)
	breakdown := make([]models.TypeBreakdown, 0, len(counts))
	for typeID, count := range counts {
		entry := models.TypeBreakdown{TypeID: typeID, Count: count}
		if total > 0 {
			entry.Percentage = float64(count) / float64(total) * 100
		}
		breakdown = append(breakdown, entry)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].TypeID < breakdown[j].TypeID
	})
	return breakdown
}
