package services

import (
	"fmt"
	"sort"
	"strings"

	"imovel-scraper/models"
)

// Report aggregates the promoted listings of one processing run.
type Report struct {
	TotalProperties int
	AveragePrice    float64
	MinPrice        float64
	MaxPrice        float64
	AverageArea     float64
	MostExpensive   *models.Property
	ByNeighborhood  map[string]int
	ByType          map[models.PropertyType]int
}

// BuildReport computes summary statistics over promoted listings. Records
// with a zero price or area are excluded from the respective averages.
func BuildReport(properties []*models.Property) *Report {
	report := &Report{
		ByNeighborhood: make(map[string]int),
		ByType:         make(map[models.PropertyType]int),
	}

	if len(properties) == 0 {
		return report
	}
	report.TotalProperties = len(properties)

	var priced []*models.Property
	var areaTotal float64
	var areaCount int

	for _, p := range properties {
		if p.Price > 0 {
			priced = append(priced, p)
		}
		if p.Area > 0 {
			areaTotal += p.Area
			areaCount++
		}
		if p.Address.Neighborhood != "" {
			report.ByNeighborhood[p.Address.Neighborhood]++
		}
		report.ByType[p.Type]++
	}

	if len(priced) > 0 {
		report.MinPrice = priced[0].Price
		report.MaxPrice = priced[0].Price
		report.MostExpensive = priced[0]
		var total float64
		for _, p := range priced {
			total += p.Price
			if p.Price < report.MinPrice {
				report.MinPrice = p.Price
			}
			if p.Price > report.MaxPrice {
				report.MaxPrice = p.Price
				report.MostExpensive = p
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}
	if areaCount > 0 {
		report.AverageArea = round2(areaTotal / float64(areaCount))
	}

	return report
}

// Print renders the report to stdout.
func (r *Report) Print() {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🏠 IMÓVEIS PROCESSADOS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Properties promoted : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average price : \033[1;32mR$ %.2f\033[0m\n", r.AveragePrice)
		fmt.Printf("  Minimum price : \033[1;32mR$ %.2f\033[0m\n", r.MinPrice)
		fmt.Printf("  Maximum price : \033[1;32mR$ %.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}
	if r.AverageArea > 0 {
		fmt.Printf("  Average area  : \033[1;32m%.2f m²\033[0m\n", r.AverageArea)
	}
	fmt.Println()

	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s  [%s]\n", truncate(r.MostExpensive.Title, 44), r.MostExpensive.Code)
		fmt.Printf("  Neighborhood : %s\n", r.MostExpensive.Address.Neighborhood)
		fmt.Printf("  Price        : \033[1;31mR$ %.2f\033[0m\n", r.MostExpensive.Price)
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Listings by Neighborhood\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByNeighborhood) == 0 {
		fmt.Printf("  No neighborhood data\n")
	} else {
		type nbCount struct {
			name  string
			count int
		}
		var nbs []nbCount
		for name, cnt := range r.ByNeighborhood {
			nbs = append(nbs, nbCount{name, cnt})
		}
		sort.Slice(nbs, func(i, j int) bool {
			return nbs[i].count > nbs[j].count
		})
		for _, nb := range nbs {
			bar := strings.Repeat("█", nb.count)
			fmt.Printf("  %-30s %s (%d)\n", truncate(nb.name, 28), bar, nb.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
