// Package valuation computes fair values from a quote snapshot and
// the embedded industry benchmarks. The engine is pure, it touches no
// network and no clock.
package valuation

import (
	"stock-valuation-pro/internal/quote"
	"stock-valuation-pro/internal/refdata"
)

const (
	// Trailing multiples get a haircut before blending with the
	// industry average so a single hot year cannot dominate.
	trailingDiscount = 0.9

	// A current EV/EBITDA outside (0, 50) is an outlier and the
	// industry multiple is used outright.
	evOutlierLow  = 0.0
	evOutlierHigh = 50.0
)

// Result carries everything the dashboard, the charts and the PDF
// report need for one analyzed company. Pointer fields are absent when
// the snapshot lacked the inputs for that method.
type Result struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Tier        string `json:"tier"`

	Price      float64  `json:"price"`
	MarketCap  float64  `json:"marketCap"`
	TrailingPE *float64 `json:"trailingPE,omitempty"`
	ForwardPE  *float64 `json:"forwardPE,omitempty"`
	EPS        *float64 `json:"eps,omitempty"`

	IndustryPE       float64 `json:"industryPE"`
	IndustryEVEBITDA float64 `json:"industryEvEbitda"`
	IndustryPS       float64 `json:"industryPS"`

	FairValuePE *float64 `json:"fairValuePE,omitempty"`
	UpsidePE    *float64 `json:"upsidePE,omitempty"`

	CurrentEVEBITDA *float64 `json:"currentEvEbitda,omitempty"`
	FairValueEV     *float64 `json:"fairValueEV,omitempty"`
	UpsideEV        *float64 `json:"upsideEV,omitempty"`

	PBRatio *float64 `json:"pbRatio,omitempty"`
	PSRatio *float64 `json:"psRatio,omitempty"`

	NetDebt       float64  `json:"netDebt"`
	BookValue     *float64 `json:"bookValue,omitempty"`
	Revenue       *float64 `json:"revenue,omitempty"`
	DividendYield *float64 `json:"dividendYield,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`
	ProfitMargin  *float64 `json:"profitMargin,omitempty"`
	ROE           *float64 `json:"roe,omitempty"`
	High52        *float64 `json:"high52,omitempty"`
	Low52         *float64 `json:"low52,omitempty"`

	AvgFairValue   float64 `json:"avgFairValue"`
	AvgUpside      float64 `json:"avgUpside"`
	Recommendation string  `json:"recommendation"`

	Radar RadarScores `json:"radar"`
}

// RadarScores are the 0 to 100 normalized metric scores, 50 meaning
// either at-benchmark or unknown.
type RadarScores struct {
	PE     float64 `json:"pe"`
	EV     float64 `json:"ev"`
	PB     float64 `json:"pb"`
	Margin float64 `json:"margin"`
	ROE    float64 `json:"roe"`
}

// Compute runs every valuation method the snapshot has inputs for.
// It returns nil when the snapshot cannot be valued at all, the caller
// maps that to a valuation-unavailable error. Any panic from malformed
// inputs also folds into the nil result.
func Compute(snap *quote.Snapshot) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
		}
	}()
	if snap == nil {
		return nil
	}
	price := snap.Price()
	if price == nil {
		return nil
	}

	sector := snap.Sector
	if sector == "" {
		sector = "Default"
	}
	bench := refdata.BenchmarkFor(sector)

	res = &Result{
		Ticker:           snap.Ticker,
		CompanyName:      snap.CompanyName,
		Sector:           sector,
		Price:            *price,
		TrailingPE:       snap.TrailingPE,
		ForwardPE:        snap.ForwardPE,
		EPS:              snap.EPS,
		IndustryPE:       bench.PE,
		IndustryEVEBITDA: bench.EVEBITDA,
		IndustryPS:       bench.PS,
		BookValue:        snap.BookValue,
		Revenue:          snap.TotalRevenue,
		DividendYield:    snap.DividendYield,
		Beta:             snap.Beta,
		ProfitMargin:     snap.ProfitMargins,
		ROE:              snap.ReturnOnEquity,
		High52:           snap.FiftyTwoWeekHigh,
		Low52:            snap.FiftyTwoWeekLow,
	}
	if snap.MarketCap != nil {
		res.MarketCap = *snap.MarketCap
	}
	res.Tier = refdata.TierFor(res.MarketCap)

	computePE(snap, bench, res)
	computeEV(snap, bench, res)
	computeRatios(snap, res)
	summarize(res)
	res.Radar = radarScores(res)
	return res
}

// computePE blends the discounted trailing PE with the industry PE and
// applies it to trailing EPS. A negative EPS yields a negative fair
// value on purpose, the loss-maker shows up as deeply overvalued.
func computePE(snap *quote.Snapshot, bench refdata.Benchmark, res *Result) {
	historicalPE := bench.PE
	if snap.TrailingPE != nil && *snap.TrailingPE > 0 {
		historicalPE = *snap.TrailingPE * trailingDiscount
	}
	blendedPE := (bench.PE + historicalPE) / 2

	if snap.EPS == nil || *snap.EPS == 0 {
		return
	}
	fair := *snap.EPS * blendedPE
	res.FairValuePE = &fair
	if fair != 0 && res.Price > 0 {
		up := (fair - res.Price) / res.Price * 100
		res.UpsidePE = &up
	}
}

func computeEV(snap *quote.Snapshot, bench refdata.Benchmark, res *Result) {
	netDebt := 0.0
	if snap.TotalDebt != nil {
		netDebt += *snap.TotalDebt
	}
	if snap.TotalCash != nil {
		netDebt -= *snap.TotalCash
	}
	res.NetDebt = netDebt

	if snap.EBITDA == nil || *snap.EBITDA <= 0 {
		return
	}
	ebitda := *snap.EBITDA

	if snap.EnterpriseValue != nil {
		cur := *snap.EnterpriseValue / ebitda
		res.CurrentEVEBITDA = &cur
	}

	target := bench.EVEBITDA
	if res.CurrentEVEBITDA != nil {
		if cur := *res.CurrentEVEBITDA; cur > evOutlierLow && cur < evOutlierHigh {
			target = (bench.EVEBITDA + cur*trailingDiscount) / 2
		}
	}

	// Missing share count falls back to 1 so the fair value is still
	// produced; an explicit zero still skips the method.
	shares := 1.0
	if snap.SharesOutstanding != nil {
		if *snap.SharesOutstanding <= 0 {
			return
		}
		shares = *snap.SharesOutstanding
	}
	fair := (ebitda*target - netDebt) / shares
	res.FairValueEV = &fair
	if fair != 0 && res.Price > 0 {
		up := (fair - res.Price) / res.Price * 100
		res.UpsideEV = &up
	}
}

func computeRatios(snap *quote.Snapshot, res *Result) {
	if snap.BookValue != nil && *snap.BookValue > 0 {
		pb := res.Price / *snap.BookValue
		res.PBRatio = &pb
	}
	if snap.TotalRevenue != nil && *snap.TotalRevenue > 0 && snap.MarketCap != nil {
		ps := *snap.MarketCap / *snap.TotalRevenue
		res.PSRatio = &ps
	}
}

// summarize averages the per-method upsides and fair values and maps
// the average upside onto a recommendation.
func summarize(res *Result) {
	var ups, fairs []float64
	if res.UpsidePE != nil {
		ups = append(ups, *res.UpsidePE)
	}
	if res.UpsideEV != nil {
		ups = append(ups, *res.UpsideEV)
	}
	if res.FairValuePE != nil {
		fairs = append(fairs, *res.FairValuePE)
	}
	if res.FairValueEV != nil {
		fairs = append(fairs, *res.FairValueEV)
	}

	res.AvgFairValue = res.Price
	if len(fairs) > 0 {
		res.AvgFairValue = mean(fairs)
	}
	if len(ups) > 0 {
		res.AvgUpside = mean(ups)
	}
	res.Recommendation = Recommend(res.AvgUpside)
}

// Recommend maps an average upside percentage to an action label.
func Recommend(avgUpside float64) string {
	switch {
	case avgUpside > 25:
		return "STRONG BUY"
	case avgUpside > 15:
		return "BUY"
	case avgUpside > 0:
		return "ACCUMULATE"
	case avgUpside > -10:
		return "HOLD"
	default:
		return "AVOID"
	}
}

func radarScores(res *Result) RadarScores {
	s := RadarScores{PE: 50, EV: 50, PB: 50, Margin: 50, ROE: 50}
	if res.TrailingPE != nil && *res.TrailingPE != 0 && res.IndustryPE != 0 {
		s.PE = clamp(100 - *res.TrailingPE/res.IndustryPE*50)
	}
	if res.CurrentEVEBITDA != nil && res.IndustryEVEBITDA != 0 {
		s.EV = clamp(100 - *res.CurrentEVEBITDA/res.IndustryEVEBITDA*50)
	}
	if res.PBRatio != nil {
		s.PB = clamp(100 - *res.PBRatio*20)
	}
	if res.ProfitMargin != nil && *res.ProfitMargin != 0 {
		s.Margin = clamp(*res.ProfitMargin * 500)
	}
	if res.ROE != nil && *res.ROE != 0 {
		s.ROE = clamp(*res.ROE * 300)
	}
	return s
}

// RangePosition places the current price inside the 52-week range as
// a 0 to 100 percentage. Returns false when the range is unusable.
func (r *Result) RangePosition() (float64, bool) {
	if r.Low52 == nil || r.High52 == nil || *r.High52 <= *r.Low52 || r.Price <= 0 {
		return 0, false
	}
	pos := (r.Price - *r.Low52) / (*r.High52 - *r.Low52) * 100
	return clamp(pos), true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
