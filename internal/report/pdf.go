package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"stock-valuation-pro/internal/valuation"
)

const disclaimer = "DISCLAIMER: This report is for educational purposes only and does not " +
	"constitute financial advice. Always consult a qualified financial advisor before " +
	"making investment decisions. Past performance is not indicative of future results."

// PDF builds the downloadable valuation report for one result.
func PDF(res *valuation.Result, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Title block
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(21, 101, 192)
	pdf.CellFormat(0, 12, "US Stock Valuation Pro", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(0, 7, "Professional Valuation Report", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	// Company block
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 8, res.CompanyName, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Ticker: %s | Sector: %s | %s", res.Ticker, res.Sector, res.Tier), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Report Date: "+now.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Fair value summary table
	summaryRows := [][2]string{
		{"Fair Value", fmt.Sprintf("$ %.2f", res.AvgFairValue)},
		{"Current Price", fmt.Sprintf("$ %.2f", res.Price)},
		{"Potential Upside", fmt.Sprintf("%+.2f%%", res.AvgUpside)},
		{"Recommendation", res.Recommendation},
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(21, 101, 192)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(75, 9, "Metric", "1", 0, "C", true, 0, "")
	pdf.CellFormat(65, 9, "Value", "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(227, 242, 253)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range summaryRows {
		pdf.CellFormat(75, 8, row[0], "1", 0, "C", true, 0, "")
		pdf.CellFormat(65, 8, row[1], "1", 1, "C", true, 0, "")
	}
	pdf.Ln(8)

	// Detailed metrics table
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Valuation Metrics", "", 1, "L", false, 0, "")
	metricRows := [][3]string{
		{"PE Ratio", fmtMultiple(res.TrailingPE), fmt.Sprintf("%.2fx", res.IndustryPE)},
		{"EV/EBITDA", fmtMultiple(res.CurrentEVEBITDA), fmt.Sprintf("%.2fx", res.IndustryEVEBITDA)},
		{"P/B Ratio", fmtMultiple(res.PBRatio), "-"},
		{"P/S Ratio", fmtMultiple(res.PSRatio), fmt.Sprintf("%.2fx", res.IndustryPS)},
		{"EPS", fmtDollar(res.EPS), "-"},
		{"Market Cap", fmt.Sprintf("$ %.2fB", res.MarketCap/1e9), "-"},
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(50, 8, "Metric", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 8, "Current", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 8, "Industry Benchmark", "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for i, row := range metricRows {
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(248, 250, 252)
		}
		pdf.CellFormat(50, 7, row[0], "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, row[2], "1", 1, "C", true, 0, "")
	}
	pdf.Ln(10)

	// Disclaimer
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(148, 163, 184)
	pdf.MultiCell(0, 4, disclaimer, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtMultiple(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2fx", *v)
}

func fmtDollar(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("$ %.2f", *v)
}
