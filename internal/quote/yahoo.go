package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
)

const (
	crumbTTL  = 1 * time.Hour
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	quoteModules = "assetProfile,financialData,defaultKeyStatistics,summaryDetail,price,earnings,recommendationTrend"
)

// YahooClient talks to the quoteSummary v10 endpoint. Yahoo gates the
// endpoint behind a crumb token tied to session cookies, so the client
// keeps a cookie jar and refreshes the crumb when it goes stale.
type YahooClient struct {
	baseURL string
	client  *http.Client

	crumbMu  sync.Mutex
	crumb    string
	crumbExp time.Time
}

func NewYahooClient(baseURL string) *YahooClient {
	jar, _ := cookiejar.New(nil)
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
		},
	}
}

// getCrumb returns a cached crumb or fetches a fresh one. Yahoo wants
// the session cookies first, then hands out the crumb.
func (yc *YahooClient) getCrumb(ctx context.Context) (string, error) {
	yc.crumbMu.Lock()
	defer yc.crumbMu.Unlock()

	if yc.crumb != "" && time.Now().Before(yc.crumbExp) {
		return yc.crumb, nil
	}

	seedReq, err := http.NewRequestWithContext(ctx, "GET", "https://fc.yahoo.com", nil)
	if err != nil {
		return "", fmt.Errorf("creating seed request: %w", err)
	}
	seedReq.Header.Set("User-Agent", userAgent)
	if seedResp, err := yc.client.Do(seedReq); err == nil {
		// Only the cookies matter, the seed page itself 404s.
		seedResp.Body.Close()
	}

	crumbReq, err := http.NewRequestWithContext(ctx, "GET", yc.baseURL+"/v1/test/getcrumb", nil)
	if err != nil {
		return "", fmt.Errorf("creating crumb request: %w", err)
	}
	crumbReq.Header.Set("User-Agent", userAgent)
	resp, err := yc.client.Do(crumbReq)
	if err != nil {
		return "", fmt.Errorf("crumb request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading crumb response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("crumb endpoint returned %d: %s", resp.StatusCode, preview(body))
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", fmt.Errorf("empty crumb returned")
	}

	yc.crumb = crumb
	yc.crumbExp = time.Now().Add(crumbTTL)
	log.Debug().Str("crumb", crumb[:min(8, len(crumb))]+"...").Msg("yahoo crumb obtained")
	return crumb, nil
}

func (yc *YahooClient) invalidateCrumb() {
	yc.crumbMu.Lock()
	yc.crumb = ""
	yc.crumbExp = time.Time{}
	yc.crumbMu.Unlock()
}

// Fetch retrieves the quoteSummary modules for ticker and parses them
// into a Snapshot. A 401 means a stale crumb, so it refreshes and
// retries once.
func (yc *YahooClient) Fetch(ctx context.Context, ticker string) (*Snapshot, error) {
	snap, err := yc.fetchOnce(ctx, ticker)
	if err != nil && strings.Contains(err.Error(), "401") {
		log.Debug().Str("ticker", ticker).Msg("crumb expired, refreshing and retrying")
		yc.invalidateCrumb()
		snap, err = yc.fetchOnce(ctx, ticker)
	}
	return snap, err
}

func (yc *YahooClient) fetchOnce(ctx context.Context, ticker string) (*Snapshot, error) {
	crumb, err := yc.getCrumb(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining crumb: %w", err)
	}

	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s&crumb=%s",
		yc.baseURL, ticker, quoteModules, crumb)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := yc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching yahoo data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
		return nil, fmt.Errorf("yahoo returned 429: Edge: Too Many Requests")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned %d: %s", resp.StatusCode, preview(body))
	}
	// An empty or non-JSON body on a 200 is Yahoo shedding load, treat
	// it the same as an explicit 429.
	if len(strings.TrimSpace(string(body))) == 0 || strings.HasPrefix(string(body), "<") {
		return nil, newFetchError(ErrRateLimited, ticker,
			"Yahoo Finance is rate limiting requests, try again in a minute")
	}

	return parseQuoteSummary(ticker, body)
}

// Search resolves a free-text company name to candidate tickers.
func (yc *YahooClient) Search(ctx context.Context, query string) ([]string, error) {
	url := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=5&newsCount=0",
		yc.baseURL, strings.ReplaceAll(strings.TrimSpace(query), " ", "+"))
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := yc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo search returned %d", resp.StatusCode)
	}

	var sr struct {
		Quotes []struct {
			Symbol    string `json:"symbol"`
			QuoteType string `json:"quoteType"`
		} `json:"quotes"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	var out []string
	for _, q := range sr.Quotes {
		if q.QuoteType == "EQUITY" || q.QuoteType == "ETF" {
			out = append(out, q.Symbol)
		}
	}
	return out, nil
}

// yfVal is Yahoo's raw + formatted number wrapper.
type yfVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func parseQuoteSummary(ticker string, body []byte) (*Snapshot, error) {
	var raw struct {
		QuoteSummary struct {
			Result []json.RawMessage `json:"result"`
			Error  *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		// An unparsable body is how Yahoo serves rate-limit pages.
		return nil, newFetchError(ErrRateLimited, ticker,
			fmt.Sprintf("unparsable response body: %s", preview(body)))
	}
	if e := raw.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", e.Code, e.Description)
	}
	if len(raw.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no data returned for %s", ticker)
	}

	var modules map[string]json.RawMessage
	if err := json.Unmarshal(raw.QuoteSummary.Result[0], &modules); err != nil {
		return nil, fmt.Errorf("unmarshaling modules: %w", err)
	}

	snap := &Snapshot{Ticker: ticker, FetchedAt: time.Now()}

	if data, ok := modules["assetProfile"]; ok {
		var ap struct {
			Industry string `json:"industry"`
			Sector   string `json:"sector"`
		}
		if err := json.Unmarshal(data, &ap); err == nil {
			snap.Industry = ap.Industry
			snap.Sector = ap.Sector
		}
	}

	if data, ok := modules["price"]; ok {
		var p struct {
			ShortName          string `json:"shortName"`
			LongName           string `json:"longName"`
			MarketCap          yfVal  `json:"marketCap"`
			RegularMarketPrice yfVal  `json:"regularMarketPrice"`
		}
		if err := json.Unmarshal(data, &p); err == nil {
			snap.CompanyName = p.LongName
			if snap.CompanyName == "" {
				snap.CompanyName = p.ShortName
			}
			snap.MarketCap = p.MarketCap.Raw
			snap.CurrentPrice = p.RegularMarketPrice.Raw
		}
	}

	if data, ok := modules["financialData"]; ok {
		var fd struct {
			CurrentPrice       yfVal  `json:"currentPrice"`
			TotalRevenue       yfVal  `json:"totalRevenue"`
			EBITDA             yfVal  `json:"ebitda"`
			TotalDebt          yfVal  `json:"totalDebt"`
			TotalCash          yfVal  `json:"totalCash"`
			RevenueGrowth      yfVal  `json:"revenueGrowth"`
			EarningsGrowth     yfVal  `json:"earningsGrowth"`
			ProfitMargins      yfVal  `json:"profitMargins"`
			ReturnOnEquity     yfVal  `json:"returnOnEquity"`
			TargetMeanPrice    yfVal  `json:"targetMeanPrice"`
			RecommendationMean yfVal  `json:"recommendationMean"`
			RecommendationKey  string `json:"recommendationKey"`
			RevenuePerShare    yfVal  `json:"revenuePerShare"`
		}
		if err := json.Unmarshal(data, &fd); err == nil {
			if fd.CurrentPrice.Raw != nil && *fd.CurrentPrice.Raw > 0 {
				snap.CurrentPrice = fd.CurrentPrice.Raw
			}
			snap.TotalRevenue = fd.TotalRevenue.Raw
			snap.EBITDA = fd.EBITDA.Raw
			snap.TotalDebt = fd.TotalDebt.Raw
			snap.TotalCash = fd.TotalCash.Raw
			snap.RevenueGrowth = fd.RevenueGrowth.Raw
			snap.EarningsGrowth = fd.EarningsGrowth.Raw
			snap.ProfitMargins = fd.ProfitMargins.Raw
			snap.ReturnOnEquity = fd.ReturnOnEquity.Raw
			snap.TargetMeanPrice = fd.TargetMeanPrice.Raw
			snap.RecommendationMean = fd.RecommendationMean.Raw
			snap.RecommendationKey = fd.RecommendationKey
			snap.RevenuePerShare = fd.RevenuePerShare.Raw
		}
	}

	if data, ok := modules["defaultKeyStatistics"]; ok {
		var ks struct {
			EnterpriseValue     yfVal `json:"enterpriseValue"`
			EnterpriseToEbitda  yfVal `json:"enterpriseToEbitda"`
			TrailingEps         yfVal `json:"trailingEps"`
			BookValue           yfVal `json:"bookValue"`
			PriceToBook         yfVal `json:"priceToBook"`
			SharesOutstanding   yfVal `json:"sharesOutstanding"`
			ForwardPE           yfVal `json:"forwardPE"`
			Beta                yfVal `json:"beta"`
			PriceToSalesTrail12 yfVal `json:"priceToSalesTrailing12Months"`
		}
		if err := json.Unmarshal(data, &ks); err == nil {
			snap.EnterpriseValue = ks.EnterpriseValue.Raw
			snap.EVToEBITDA = ks.EnterpriseToEbitda.Raw
			snap.EPS = ks.TrailingEps.Raw
			snap.BookValue = ks.BookValue.Raw
			snap.PriceToBook = ks.PriceToBook.Raw
			snap.SharesOutstanding = ks.SharesOutstanding.Raw
			snap.ForwardPE = ks.ForwardPE.Raw
			snap.Beta = ks.Beta.Raw
			snap.PriceToSales = ks.PriceToSalesTrail12.Raw
		}
	}

	if data, ok := modules["summaryDetail"]; ok {
		var sd struct {
			TrailingPE          yfVal `json:"trailingPE"`
			ForwardPE           yfVal `json:"forwardPE"`
			DividendYield       yfVal `json:"dividendYield"`
			PreviousClose       yfVal `json:"previousClose"`
			FiftyTwoWeekHigh    yfVal `json:"fiftyTwoWeekHigh"`
			FiftyTwoWeekLow     yfVal `json:"fiftyTwoWeekLow"`
			PriceToSalesTrail12 yfVal `json:"priceToSalesTrailing12Months"`
			Beta                yfVal `json:"beta"`
		}
		if err := json.Unmarshal(data, &sd); err == nil {
			snap.TrailingPE = sd.TrailingPE.Raw
			if snap.ForwardPE == nil {
				snap.ForwardPE = sd.ForwardPE.Raw
			}
			snap.DividendYield = sd.DividendYield.Raw
			snap.PreviousClose = sd.PreviousClose.Raw
			snap.FiftyTwoWeekHigh = sd.FiftyTwoWeekHigh.Raw
			snap.FiftyTwoWeekLow = sd.FiftyTwoWeekLow.Raw
			if snap.PriceToSales == nil {
				snap.PriceToSales = sd.PriceToSalesTrail12.Raw
			}
			if snap.Beta == nil {
				snap.Beta = sd.Beta.Raw
			}
		}
	}

	return snap, nil
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
