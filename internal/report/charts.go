// Package report renders the valuation charts and the downloadable
// PDF report.
package report

import (
	"errors"
	"fmt"

	"github.com/vicanso/go-charts/v2"

	"stock-valuation-pro/internal/storage"
	"stock-valuation-pro/internal/valuation"
)

// ComparisonChart renders current price vs fair value bars for every
// method that produced a fair value.
func ComparisonChart(res *valuation.Result) ([]byte, error) {
	cacheKey := "cmp|" + res.Ticker
	if img, ok := cacheGet(cacheKey); ok {
		return img, nil
	}

	var categories []string
	var current, fair []float64
	if res.FairValuePE != nil {
		categories = append(categories, "PE Multiple")
		current = append(current, res.Price)
		fair = append(fair, *res.FairValuePE)
	}
	if res.FairValueEV != nil {
		categories = append(categories, "EV/EBITDA")
		current = append(current, res.Price)
		fair = append(fair, *res.FairValueEV)
	}
	if len(categories) == 0 {
		return nil, errors.New("no fair values to compare")
	}

	painter, err := charts.BarRender([][]float64{current, fair},
		charts.TitleTextOptionFunc(res.Ticker+" • Current vs Fair Value"),
		charts.XAxisDataOptionFunc(categories),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"Current Price", "Fair Value"},
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(450),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	cacheSet(cacheKey, img)
	return img, nil
}

// RadarChart renders the normalized metric scores against the
// at-benchmark baseline of 50.
func RadarChart(res *valuation.Result) ([]byte, error) {
	cacheKey := "radar|" + res.Ticker
	if img, ok := cacheGet(cacheKey); ok {
		return img, nil
	}

	indicators := []string{"PE Ratio", "EV/EBITDA", "P/B Ratio", "Profit Margin", "ROE"}
	maxes := []float64{100, 100, 100, 100, 100}
	scores := []float64{res.Radar.PE, res.Radar.EV, res.Radar.PB, res.Radar.Margin, res.Radar.ROE}
	benchmark := []float64{50, 50, 50, 50, 50}

	painter, err := charts.RadarRender([][]float64{scores, benchmark},
		charts.TitleTextOptionFunc(res.Ticker+" • Metric Scores"),
		charts.RadarIndicatorOptionFunc(indicators, maxes),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{res.Ticker, "Benchmark"},
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(600),
		charts.HeightOptionFunc(450),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	cacheSet(cacheKey, img)
	return img, nil
}

// UpsideChart renders the per-method upside percentages as horizontal
// bars, the closest thing to the gauge pair without an SVG gauge.
func UpsideChart(res *valuation.Result) ([]byte, error) {
	cacheKey := "upside|" + res.Ticker
	if img, ok := cacheGet(cacheKey); ok {
		return img, nil
	}

	var labels []string
	var ups []float64
	if res.UpsidePE != nil {
		labels = append(labels, "PE Multiple")
		ups = append(ups, *res.UpsidePE)
	}
	if res.UpsideEV != nil {
		labels = append(labels, "EV/EBITDA")
		ups = append(ups, *res.UpsideEV)
	}
	if len(labels) == 0 {
		return nil, errors.New("no upside values")
	}

	painter, err := charts.HorizontalBarRender([][]float64{ups},
		charts.TitleTextOptionFunc(fmt.Sprintf("%s • Upside %% (avg %+.1f%%)", res.Ticker, res.AvgUpside)),
		charts.YAxisDataOptionFunc(labels),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(300),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	cacheSet(cacheKey, img)
	return img, nil
}

// UsageChart renders the ticker popularity breakdown as a pie chart.
func UsageChart(top []storage.TickerCount, days int) ([]byte, error) {
	if len(top) == 0 {
		return nil, errors.New("no usage data available")
	}

	total := 0
	for _, tc := range top {
		total += tc.Count
	}
	var values []float64
	var pieLabels []string
	for _, tc := range top {
		values = append(values, float64(tc.Count))
		pieLabels = append(pieLabels, fmt.Sprintf("%s (%.1f%%)", tc.Ticker, float64(tc.Count)/float64(total)*100))
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Analyzed Tickers (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: pieLabels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// InvalidateCharts drops every cached chart for ticker. Called when
// the quote cache is invalidated so a retry redraws from fresh data.
func InvalidateCharts(ticker string) {
	chartCacheMu.Lock()
	for _, kind := range []string{"cmp|", "radar|", "upside|"} {
		delete(chartCache, kind+ticker)
	}
	chartCacheMu.Unlock()
}
