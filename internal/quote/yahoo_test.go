package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuoteSummary = `{
  "quoteSummary": {
    "result": [{
      "assetProfile": {"sector": "Technology", "industry": "Consumer Electronics"},
      "price": {"longName": "Apple Inc.", "marketCap": {"raw": 3000000000000}, "regularMarketPrice": {"raw": 150.0}},
      "financialData": {
        "currentPrice": {"raw": 150.25},
        "totalRevenue": {"raw": 380000000000},
        "ebitda": {"raw": 125000000000},
        "totalDebt": {"raw": 110000000000},
        "totalCash": {"raw": 60000000000},
        "recommendationKey": "buy"
      },
      "defaultKeyStatistics": {
        "trailingEps": {"raw": 6.1},
        "sharesOutstanding": {"raw": 15500000000},
        "priceToBook": {"raw": 45.2},
        "enterpriseToEbitda": {"raw": 24.0}
      },
      "summaryDetail": {
        "trailingPE": {"raw": 24.6},
        "previousClose": {"raw": 149.0},
        "fiftyTwoWeekHigh": {"raw": 199.0},
        "fiftyTwoWeekLow": {"raw": 124.0}
      }
    }],
    "error": null
  }
}`

func TestParseQuoteSummary(t *testing.T) {
	snap, err := parseQuoteSummary("AAPL", []byte(sampleQuoteSummary))
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc.", snap.CompanyName)
	assert.Equal(t, "Technology", snap.Sector)
	require.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, 150.25, *snap.CurrentPrice)
	require.NotNil(t, snap.TrailingPE)
	assert.Equal(t, 24.6, *snap.TrailingPE)
	require.NotNil(t, snap.EPS)
	assert.Equal(t, 6.1, *snap.EPS)
	require.NotNil(t, snap.MarketCap)
	assert.Equal(t, 3e12, *snap.MarketCap)
	assert.GreaterOrEqual(t, snap.FieldCount(), minFields)

	price := snap.Price()
	require.NotNil(t, price)
	assert.Equal(t, 150.25, *price)
}

func TestParseQuoteSummaryYahooError(t *testing.T) {
	body := `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for ticker symbol: XYZW"}}}`
	_, err := parseQuoteSummary("XYZW", []byte(body))
	require.Error(t, err)
	assert.Equal(t, ErrTickerNotFound, Classify("XYZW", err).Kind)
}

func TestParseQuoteSummaryUnparsableBodyIsRateLimit(t *testing.T) {
	_, err := parseQuoteSummary("AAPL", []byte("garbage body not json"))
	require.Error(t, err)
	assert.Equal(t, ErrRateLimited, Classify("AAPL", err).Kind)
}

func TestParseQuoteSummaryEmptyResult(t *testing.T) {
	body := `{"quoteSummary":{"result":[],"error":null}}`
	_, err := parseQuoteSummary("XYZW", []byte(body))
	require.Error(t, err)
	assert.Equal(t, ErrTickerNotFound, Classify("XYZW", err).Kind)
}

func TestYahooClientTreatsEmptyBodyAsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/test/getcrumb" {
			w.Write([]byte("testcrumb"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	yc := NewYahooClient(srv.URL)
	_, err := yc.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	ferr, ok := err.(*FetchError)
	require.True(t, ok)
	assert.Equal(t, ErrRateLimited, ferr.Kind)
}
