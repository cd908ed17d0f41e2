// Package quote fetches company fundamentals from the Yahoo Finance
// quoteSummary API, throttles and classifies the requests, and memoizes
// the results in a session tier and a shared TTL tier.
package quote

import "time"

// Snapshot is a point-in-time view of one company's fundamentals.
// Numeric fields are pointers so an absent Yahoo field stays
// distinguishable from a zero value.
type Snapshot struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`

	CurrentPrice       *float64 `json:"currentPrice,omitempty"`
	PreviousClose      *float64 `json:"previousClose,omitempty"`
	MarketCap          *float64 `json:"marketCap,omitempty"`
	TrailingPE         *float64 `json:"trailingPE,omitempty"`
	ForwardPE          *float64 `json:"forwardPE,omitempty"`
	PriceToBook        *float64 `json:"priceToBook,omitempty"`
	PriceToSales       *float64 `json:"priceToSales,omitempty"`
	EVToEBITDA         *float64 `json:"evToEbitda,omitempty"`
	EnterpriseValue    *float64 `json:"enterpriseValue,omitempty"`
	EPS                *float64 `json:"eps,omitempty"`
	BookValue          *float64 `json:"bookValue,omitempty"`
	RevenuePerShare    *float64 `json:"revenuePerShare,omitempty"`
	TotalRevenue       *float64 `json:"totalRevenue,omitempty"`
	EBITDA             *float64 `json:"ebitda,omitempty"`
	TotalDebt          *float64 `json:"totalDebt,omitempty"`
	TotalCash          *float64 `json:"totalCash,omitempty"`
	SharesOutstanding  *float64 `json:"sharesOutstanding,omitempty"`
	DividendYield      *float64 `json:"dividendYield,omitempty"`
	Beta               *float64 `json:"beta,omitempty"`
	FiftyTwoWeekHigh   *float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow    *float64 `json:"fiftyTwoWeekLow,omitempty"`
	ProfitMargins      *float64 `json:"profitMargins,omitempty"`
	ReturnOnEquity     *float64 `json:"returnOnEquity,omitempty"`
	RevenueGrowth      *float64 `json:"revenueGrowth,omitempty"`
	EarningsGrowth     *float64 `json:"earningsGrowth,omitempty"`
	TargetMeanPrice    *float64 `json:"targetMeanPrice,omitempty"`
	RecommendationKey  string   `json:"recommendationKey,omitempty"`
	RecommendationMean *float64 `json:"recommendationMean,omitempty"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Price picks the best available price for valuation: currentPrice,
// then regular market price (stored in CurrentPrice by the parser),
// then previous close. Returns nil when none is positive.
func (s *Snapshot) Price() *float64 {
	for _, p := range []*float64{s.CurrentPrice, s.PreviousClose} {
		if p != nil && *p > 0 {
			return p
		}
	}
	return nil
}

// FieldCount reports how many fields the snapshot actually carries.
// A snapshot with fewer than minFields populated is treated as an
// invalid ticker rather than a thin quote.
func (s *Snapshot) FieldCount() int {
	n := 0
	for _, str := range []string{s.CompanyName, s.Sector, s.Industry, s.RecommendationKey} {
		if str != "" {
			n++
		}
	}
	for _, p := range []*float64{
		s.CurrentPrice, s.PreviousClose, s.MarketCap, s.TrailingPE, s.ForwardPE,
		s.PriceToBook, s.PriceToSales, s.EVToEBITDA, s.EnterpriseValue, s.EPS,
		s.BookValue, s.RevenuePerShare, s.TotalRevenue, s.EBITDA, s.TotalDebt,
		s.TotalCash, s.SharesOutstanding, s.DividendYield, s.Beta,
		s.FiftyTwoWeekHigh, s.FiftyTwoWeekLow, s.ProfitMargins, s.ReturnOnEquity,
		s.RevenueGrowth, s.EarningsGrowth, s.TargetMeanPrice, s.RecommendationMean,
	} {
		if p != nil {
			n++
		}
	}
	return n
}

func ptr(v float64) *float64 { return &v }
