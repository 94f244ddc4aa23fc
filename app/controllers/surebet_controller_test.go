package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPreviewTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/surebets/preview", HandleSurebetPreview)
	return app
}

func TestSurebetPreviewEqualOdds(t *testing.T) {
	app := newPreviewTestApp()

	req := httptest.NewRequest(http.MethodGet, "/surebets/preview?odds1=2.10&odds2=2.10&total_stake=100000", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Margin      float64 `json:"margin"`
		Stake1      int64   `json:"stake1"`
		Stake2      int64   `json:"stake2"`
		ProfitCents int64   `json:"profit_cents"`
		ROI         float64 `json:"roi"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, int64(50000), out.Stake1)
	assert.Equal(t, int64(50000), out.Stake2)
	assert.Equal(t, out.Stake1+out.Stake2, int64(100000))
	assert.Greater(t, out.ProfitCents, int64(0))
	assert.InDelta(t, 0.9524, out.Margin, 0.001)
}

func TestSurebetPreviewRejectsNonArbitrage(t *testing.T) {
	app := newPreviewTestApp()

	req := httptest.NewRequest(http.MethodGet, "/surebets/preview?odds1=1.80&odds2=2.00&total_stake=100000", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSurebetPreviewRejectsBadParameters(t *testing.T) {
	app := newPreviewTestApp()

	req := httptest.NewRequest(http.MethodGet, "/surebets/preview?odds1=abc&odds2=2.0&total_stake=100", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
