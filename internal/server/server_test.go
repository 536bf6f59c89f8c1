package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

type stubScorer struct {
	got     types.Query
	results []types.SearchResult
	err     error
}

func (s *stubScorer) Score(_ context.Context, q types.Query) ([]types.SearchResult, error) {
	s.got = q
	return s.results, s.err
}

func newTestServer(t *testing.T, scorer Scorer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(scorer, NewConfig(), log.New(io.Discard)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/search", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, &stubScorer{})
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Fraud Detection API running", body["message"])
}

func TestSearch(t *testing.T) {
	scorer := &stubScorer{results: []types.SearchResult{{
		ID:          7,
		Description: "Wire Transfer International",
		Amount:      decimal.NewFromInt(25000),
		RuleFlag:    1,
		AnomalyFlag: 1,
		Severity:    types.SeverityHigh,
	}}}
	srv := newTestServer(t, scorer)

	resp := post(t, srv.URL, `{"text": "Transfer", "min_amount": 1200.5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Transfer", scorer.got.Text)
	assert.Equal(t, "1200.5", scorer.got.MinAmount.String())

	var body struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, float64(7), body.Results[0]["id"])
	assert.Equal(t, "High Risk", body.Results[0]["severity"])
	assert.Equal(t, float64(1), body.Results[0]["rule_flag"])
}

func TestSearchDefaultsMinAmount(t *testing.T) {
	scorer := &stubScorer{}
	srv := newTestServer(t, scorer)

	resp := post(t, srv.URL, `{"text": "coffee"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, types.DefaultMinAmount.Equal(scorer.got.MinAmount))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results": []}`, string(raw))
}

func TestSearchBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubScorer{})
	for _, body := range []string{`{"text": ""}`, `not json`, `{"text": "x", "min_amount": "abc"}`} {
		resp := post(t, srv.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestSearchInternalError(t *testing.T) {
	srv := newTestServer(t, &stubScorer{err: errors.New("store unavailable")})
	resp := post(t, srv.URL, `{"text": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "internal error", body.Detail)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &stubScorer{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", DefaultAllowedOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, DefaultAllowedOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &stubScorer{})
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
