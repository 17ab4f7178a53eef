package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/up", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	require.NoError(t, probe(server.URL+"/up"))

	status = http.StatusServiceUnavailable
	err := probe(server.URL + "/up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/up"
	server.Close()

	err := probe(url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthcheck failed")
}
