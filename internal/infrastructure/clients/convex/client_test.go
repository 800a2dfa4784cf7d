package convex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.ConvexConfig{URL: server.URL + "/", DeployKey: "prod:abc"})
	require.NoError(t, err)
	return client
}

func TestClient_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		assert.Equal(t, "Convex prod:abc", r.Header.Get("Authorization"))

		var req functionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "specialties:getSpecialties", req.Path)
		assert.Equal(t, "json", req.Format)
		assert.Equal(t, map[string]interface{}{}, req.Args)

		_, _ = w.Write([]byte(`{"status":"success","value":[{"_id":"s1","name":"Cardiology"}]}`))
	})

	var out []map[string]string
	err := client.Query(context.Background(), "specialties:getSpecialties", nil, &out)

	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"_id": "s1", "name": "Cardiology"}}, out)
}

func TestClient_MutationWithoutResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mutation", r.URL.Path)
		var req struct {
			Path string            `json:"path"`
			Args map[string]string `json:"args"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]string{"caseId": "c1", "status": "new"}, req.Args)
		_, _ = w.Write([]byte(`{"status":"success","value":null}`))
	})

	err := client.Mutation(context.Background(), "cases:updateCase", map[string]string{"caseId": "c1", "status": "new"}, nil)

	require.NoError(t, err)
}

func TestClient_FunctionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","errorMessage":"Case not found"}`))
	})

	err := client.Query(context.Background(), "cases:getCaseWithDocuments", map[string]string{"caseId": "nope"}, &struct{}{})

	var fnErr *FunctionError
	require.True(t, errors.As(err, &fnErr))
	assert.Equal(t, "cases:getCaseWithDocuments", fnErr.Path)
	assert.Equal(t, "Case not found", fnErr.Message)
}

func TestClient_UndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	err := client.Query(context.Background(), "rules:list", nil, &struct{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(&config.ConvexConfig{})
	assert.Error(t, err)
}
