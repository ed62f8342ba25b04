package wx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMETAR = "RJTT 221530Z 18008KT 9999 FEW030 24/19 Q1013 NOSIG"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	c.baseURL = srv.URL
	return c, &hits
}

func TestMETAR(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metar", r.URL.Path)
		assert.Equal(t, "RJTT", r.URL.Query().Get("ids"))
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		w.Write([]byte(sampleMETAR + "\n"))
	})

	text, err := c.METAR(context.Background(), " rjtt ")
	require.NoError(t, err)
	assert.Equal(t, sampleMETAR, text)
	assert.Equal(t, 1, *hits)
}

func TestFetchUsesCache(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleMETAR))
	})

	for i := 0; i < 3; i++ {
		_, err := c.METAR(context.Background(), "RJTT")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, *hits, "repeat lookups within the TTL hit the cache")

	// Advance past the TTL: next lookup refetches.
	c.now = func() time.Time { return time.Now().Add(cacheTTL + time.Minute) }
	_, err := c.METAR(context.Background(), "RJTT")
	require.NoError(t, err)
	assert.Equal(t, 2, *hits)
}

func TestFetchRejectsBadStation(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleMETAR))
	})

	for _, station := range []string{"", "RJ", "RJTTT", "RJ1T;", "R TT"} {
		_, err := c.METAR(context.Background(), station)
		assert.ErrorIs(t, err, ErrBadStation, "station %q", station)
	}
	assert.Zero(t, *hits, "invalid stations never reach the network")
}

func TestFetchErrors(t *testing.T) {
	t.Run("upstream error status", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		})
		_, err := c.TAF(context.Background(), "RJAA")
		assert.Error(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("  \n"))
		})
		_, err := c.TAF(context.Background(), "RJAA")
		assert.ErrorContains(t, err, "no TAF available")
	})
}
