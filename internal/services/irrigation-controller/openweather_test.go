package irrigation_controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOWMTemperatureRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{"current":{"dt":1717315200,"temp":23.4}}`))
	}))
	defer srv.Close()

	c := NewOWMTemperature("k", 45.4, 9.2, time.Minute)
	c.baseURL = srv.URL

	_, err := c.ReadCelsius()
	assert.ErrorIs(t, err, ErrNoTemperature)

	require.NoError(t, c.Refresh(context.Background()))
	temp, err := c.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, 23.4, temp)
}

func TestOWMTemperatureErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOWMTemperature("bad", 0, 0, 0)
	c.baseURL = srv.URL
	assert.ErrorContains(t, c.Refresh(context.Background()), "401")

	assert.Error(t, NewOWMTemperature("", 0, 0, 0).Refresh(context.Background()))
}
