package httpsrv

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrimmage/discord-tracker-service/internal/service"
)

type fixedStats service.PipelineStats

func (s fixedStats) Stats() service.PipelineStats { return service.PipelineStats(s) }

func TestOpsRoutes(t *testing.T) {
	srv := httptest.NewServer(NewRouter(fixedStats{ActiveIngests: 2, InFlightDispatches: 5}))
	defer srv.Close()

	tests := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/debug/pipeline", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/debug/pipeline")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var got service.PipelineStats
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, service.PipelineStats{ActiveIngests: 2, InFlightDispatches: 5}, got)
}
