package recommendation

import (
	"math"
	"sort"
	"strings"

	"kasirtoko/backend/internal/domain"
)

const (
	ReasonOutOfStock   = "out_of_stock"
	ReasonRunningLow   = "running_low"
	ReasonHighMargin   = "high_margin_item"
	DefaultThreshold   = 5
	marginScoreCeiling = 0.40
)

// Restock ranks low-stock products for the owner's next purchase run.
type Restock struct {
	defaultThreshold int
}

func NewRestock(defaultThreshold int) *Restock {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}
	return &Restock{defaultThreshold: defaultThreshold}
}

// Suggest returns products at or below threshold, lowest stock first. Service
// products such as photocopy are never suggested. Products whose name matches
// a pending shopping list entry are flagged.
func (r *Restock) Suggest(products []domain.Product, shopping []domain.ShoppingItem, threshold int) []domain.RestockSuggestion {
	if threshold <= 0 {
		threshold = r.defaultThreshold
	}

	pending := make(map[string]struct{}, len(shopping))
	for _, item := range shopping {
		if item.IsCompleted {
			continue
		}
		pending[normalizeName(item.Name)] = struct{}{}
	}

	result := make([]domain.RestockSuggestion, 0, 16)
	for _, p := range products {
		if p.IsPhotocopy || p.Stock > threshold {
			continue
		}

		stockScore := clamp(1-float64(p.Stock)/float64(threshold), 0, 1)
		marginScore := 0.0
		if p.SellPrice > 0 {
			marginScore = clamp(float64(p.SellPrice-p.CostPrice)/float64(p.SellPrice)/marginScoreCeiling, 0, 1)
		}
		_, onList := pending[normalizeName(p.Name)]

		result = append(result, domain.RestockSuggestion{
			ProductID:    p.ID,
			Name:         p.Name,
			Category:     p.Category,
			CurrentStock: p.Stock,
			Threshold:    threshold,
			OnList:       onList,
			Urgency:      round2(0.75*stockScore + 0.25*marginScore),
			ReasonCode:   deriveReason(p.Stock, stockScore, marginScore),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CurrentStock != b.CurrentStock {
			return a.CurrentStock < b.CurrentStock
		}
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		return a.Name < b.Name
	})
	return result
}

func deriveReason(stock int, stockScore float64, marginScore float64) string {
	if stock <= 0 {
		return ReasonOutOfStock
	}
	if marginScore > stockScore {
		return ReasonHighMargin
	}
	return ReasonRunningLow
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
