package sampler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"metabias/domain/model"
	"metabias/domain/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request() model.SamplerRequest {
	return model.SamplerRequest{
		Model:      "phma",
		Regime:     selection.RegimePHacking,
		Yi:         []float64{0.2, 0.4},
		Vi:         []float64{0.01, 0.02},
		Alpha:      []float64{0, 0.025, 0.05, 1},
		Priors:     model.DefaultPriors(3),
		Chains:     1,
		Iterations: 10,
		Warmup:     5,
		Seed:       3,
	}
}

func TestClient_Sample(t *testing.T) {
	var got model.SamplerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sample", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"draws":{"theta0":[0.1,0.2],"tau":[0.05,0.06],"eta":[[0.5,0.3,0.2],[0.4,0.4,0.2]]}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)
	d, err := c.Sample(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, request(), got)
	assert.Equal(t, []float64{0.1, 0.2}, d.Theta0)
	assert.Equal(t, [][]float64{{0.5, 0.3, 0.2}, {0.4, 0.4, 0.2}}, d.Eta)
	assert.Nil(t, d.Theta)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error", http.StatusBadRequest, `{"error":"bad priors"}`, "sampler http 400: bad priors"},
		{"plain error", http.StatusInternalServerError, `oops`, "sampler http 500: oops"},
		{"error field on 200", http.StatusOK, `{"error":"diverged"}`, "sampler error: diverged"},
		{"missing draws", http.StatusOK, `{}`, "sampler response missing draws"},
		{"not json", http.StatusOK, `<html>`, "unmarshal response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, time.Second)
			require.NoError(t, err)
			_, err = c.Sample(context.Background(), request())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClient_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Sample(ctx, request())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("  ", time.Second)
	assert.Error(t, err)
}
