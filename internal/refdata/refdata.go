// Package refdata holds the embedded reference tables the valuation
// engine and the dashboard picker rely on: sector multiples, growth
// benchmarks, market-cap tiers and the categorized ticker universe.
package refdata

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/benchmarks.yaml
var benchmarksYAML []byte

//go:embed data/stocks.yaml
var stocksYAML []byte

// Benchmark is the set of industry-average multiples for one sector.
type Benchmark struct {
	PE       float64 `yaml:"pe" json:"pe"`
	EVEBITDA float64 `yaml:"ev_ebitda" json:"evEbitda"`
	PS       float64 `yaml:"ps" json:"ps"`
}

// Growth is the expected revenue and earnings growth for one sector,
// in percent.
type Growth struct {
	Revenue  float64 `yaml:"revenue" json:"revenue"`
	Earnings float64 `yaml:"earnings" json:"earnings"`
}

type benchmarkFile struct {
	Sectors map[string]Benchmark `yaml:"sectors"`
	Growth  map[string]Growth    `yaml:"growth"`
}

type stockFile struct {
	Categories map[string]map[string]string `yaml:"categories"`
}

var (
	benchmarks benchmarkFile
	stocks     stockFile

	allStocks  map[string]string
	categories []string
)

func init() {
	if err := yaml.Unmarshal(benchmarksYAML, &benchmarks); err != nil {
		panic("refdata: bad benchmarks.yaml: " + err.Error())
	}
	if err := yaml.Unmarshal(stocksYAML, &stocks); err != nil {
		panic("refdata: bad stocks.yaml: " + err.Error())
	}
	if _, ok := benchmarks.Sectors["Default"]; !ok {
		panic("refdata: benchmarks.yaml missing Default sector")
	}

	allStocks = make(map[string]string)
	for name, tickers := range stocks.Categories {
		categories = append(categories, name)
		for ticker, company := range tickers {
			allStocks[ticker] = company
		}
	}
	sort.Strings(categories)
}

// BenchmarkFor returns the industry multiples for sector, falling back
// to the Default row for unknown sectors.
func BenchmarkFor(sector string) Benchmark {
	if b, ok := benchmarks.Sectors[sector]; ok {
		return b
	}
	return benchmarks.Sectors["Default"]
}

// GrowthFor returns the growth benchmarks for sector, falling back to
// the Default row.
func GrowthFor(sector string) Growth {
	if g, ok := benchmarks.Growth[sector]; ok {
		return g
	}
	return benchmarks.Growth["Default"]
}

// TierFor buckets a market cap (in dollars) into a named tier.
func TierFor(marketCap float64) string {
	switch {
	case marketCap >= 200e9:
		return "Mega Cap"
	case marketCap >= 10e9:
		return "Large Cap"
	case marketCap >= 2e9:
		return "Mid Cap"
	case marketCap >= 300e6:
		return "Small Cap"
	default:
		return "Micro Cap"
	}
}

// AllStocks returns the flattened ticker to company-name table.
func AllStocks() map[string]string {
	return allStocks
}

// Categories lists the category names in sorted order.
func Categories() []string {
	return categories
}

// Category returns the ticker table for one category.
func Category(name string) (map[string]string, bool) {
	t, ok := stocks.Categories[name]
	return t, ok
}

// NameFor returns the company name for a ticker.
func NameFor(ticker string) (string, bool) {
	name, ok := allStocks[strings.ToUpper(ticker)]
	return name, ok
}

// Search matches query against tickers and company names,
// case-insensitively, and returns matching tickers sorted.
func Search(query string) []string {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []string
	for ticker, name := range allStocks {
		if strings.Contains(ticker, q) || strings.Contains(strings.ToUpper(name), q) {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}
