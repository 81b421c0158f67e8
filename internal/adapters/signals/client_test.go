package signals_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"croffers/internal/adapters/signals"
	"croffers/internal/domain"
)

func TestClient_GetPopularity_Envelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/destinations/d-1/popularity", r.URL.Path)
		_, _ = w.Write([]byte(`{"hours":[{"hour":9,"score":40},{"hour":10,"score":"55"}]}`))
	}))
	defer ts.Close()

	c, err := signals.New(ts.URL, "k", 100)
	require.NoError(t, err)

	got, err := c.GetPopularity(context.Background(), "d-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float64(9), got[0]["hour"])
}

func TestClient_GetPopularity_LegacyArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/places/d-2/popular-times" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"h":1,"busyness":20}]`))
	}))
	defer ts.Close()

	c, _ := signals.New(ts.URL, "k", 100)
	got, err := c.GetPopularity(context.Background(), "d-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestClient_GetWeather_TranslatesErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c, _ := signals.New(ts.URL, "k", 100)
	_, err := c.GetWeather(context.Background(), "d-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	nf := httptest.NewServer(http.NotFoundHandler())
	defer nf.Close()
	c, _ = signals.New(nf.URL, "k", 100)
	_, err = c.GetWeather(context.Background(), "d-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GetPopularity_UnauthorizedIsDistinct(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c, _ := signals.New(ts.URL, "bad", 100)
	_, err := c.GetPopularity(context.Background(), "d-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}
