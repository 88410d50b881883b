package robusthttp

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoRetriesByDefault(t *testing.T) {
	assert := assert.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(2 * time.Second))
	resp, err := c.Get(srv.URL)
	assert.NoError(err)
	assert.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(int32(1), hits.Load())
	assert.Equal(2*time.Second, c.Timeout)
}

func TestTransportRetries(t *testing.T) {
	assert := assert.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(WithMaxRetries(2), WithRetryWaitMin(time.Millisecond), WithRetryWaitMax(5*time.Millisecond))
	resp, err := c.Get(srv.URL)
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(int32(2), hits.Load())
}
