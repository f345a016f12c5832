package manifold

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

func TestBaseURLPerEnvironment(t *testing.T) {
	assert.Equal(t, ProdBaseURL, BaseURL(domain.EnvProd))
	assert.Equal(t, DevBaseURL, BaseURL(domain.EnvDev))
	assert.Equal(t, DevBaseURL, NewClient(domain.EnvDev, "").baseURL)
}

func TestResolvePostsRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(domain.EnvDev, "secret", WithBaseURL(srv.URL+"/v0/"))
	idx := 3
	res, err := c.Resolve(context.Background(), domain.ResolutionRequest{
		ContractID:  "abc",
		Outcome:     domain.LabelOutcome("MKT"),
		Resolutions: []domain.AnswerResolution{{Answer: &idx, Pct: 100}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(res))
	assert.Equal(t, "/v0/market/abc/resolve", gotPath)
	assert.Equal(t, "Key secret", gotAuth)
	assert.Equal(t, "MKT", gotBody["outcome"])
	assert.Equal(t, "abc", gotBody["contractId"])
}

func TestResolveClassifiesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"User is not creator of contract"}`))
	}))
	defer srv.Close()

	c := NewClient(domain.EnvDev, "k", WithBaseURL(srv.URL))
	_, err := c.Resolve(context.Background(), domain.ResolutionRequest{ContractID: "abc", Outcome: domain.LabelOutcome("CANCEL")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
	assert.Equal(t, "User is not creator of contract", apiErr.UserMessage())
}

func TestNonJSONClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad outcome", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(domain.EnvDev, "", WithBaseURL(srv.URL))
	_, err := c.GetContract(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad outcome", apiErr.Message)
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestGatewayErrorPageIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body><h1>502 Bad Gateway</h1></body></html>"))
	}))
	defer srv.Close()

	c := NewClient(domain.EnvDev, "k", WithBaseURL(srv.URL))
	_, err := c.Resolve(context.Background(), domain.ResolutionRequest{ContractID: "abc", Outcome: domain.LabelOutcome("CANCEL")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRejected))

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.Code)

	var uf domain.UserFacing
	assert.False(t, errors.As(err, &uf))
}

func TestServerErrorWithAPIMessageIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Contract is already resolved"}`))
	}))
	defer srv.Close()

	c := NewClient(domain.EnvDev, "k", WithBaseURL(srv.URL))
	_, err := c.Resolve(context.Background(), domain.ResolutionRequest{ContractID: "abc", Outcome: domain.LabelOutcome("CANCEL")})
	assert.ErrorIs(t, err, domain.ErrRejected)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Contract is already resolved", apiErr.UserMessage())
}

func TestTransportFailureIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(domain.EnvDev, "", WithBaseURL(url))
	_, err := c.Resolve(context.Background(), domain.ResolutionRequest{ContractID: "abc"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRejected))
}

func TestGetContractAndUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /market/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "c1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Contract not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id":"c1","question":"Q?","mechanism":"cpmm-multi-1","outcomeType":"MULTIPLE_CHOICE",
			"createdTime":1700000000000,
			"answers":[{"id":"a1","text":"Yes please","prob":0.6,"index":0}]
		}`))
	})
	mux.HandleFunc("GET /user/by-id/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","name":"Ada Lovelace","username":"ada"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(domain.EnvDev, "", WithBaseURL(srv.URL))
	contract, err := c.GetContract(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.MechanismCPMMMulti, contract.Mechanism)
	require.Len(t, contract.Answers, 1)
	assert.Equal(t, 0.6, contract.AnswerProbability("a1"))

	_, err = c.GetContract(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	u, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, "Ada", u.FirstName())
}
