package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/pigeon/internal/optimization/pio"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func call(t *testing.T, h http.Handler, body string) rpcResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/rpc", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestJSONRPCRunFlow(t *testing.T) {
	_, r := testServer(t, testConfig(t))

	resp := call(t, r, `{"jsonrpc":"2.0","id":1,"method":"run.create","params":{"objective":"ackley","max_iterations":50,"seed":11}}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1.0, resp.ID)
	var created RunView
	require.NoError(t, json.Unmarshal(resp.Result, &created))
	assert.Equal(t, pio.MapAndCompass, created.State)

	resp = call(t, r, `{"jsonrpc":"2.0","id":2,"method":"run.step","params":{"id":"`+created.ID+`","count":30}}`)
	require.Nil(t, resp.Error)
	var stepped RunView
	require.NoError(t, json.Unmarshal(resp.Result, &stepped))
	assert.Equal(t, 30, stepped.Snapshot.Iteration)
	assert.Equal(t, pio.Landmark, stepped.State)

	// A positional parameter array is accepted too.
	resp = call(t, r, `{"jsonrpc":"2.0","id":"s","method":"run.status","params":[{"id":"`+created.ID+`"}]}`)
	require.Nil(t, resp.Error)
	var status RunView
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.Equal(t, stepped.Snapshot, status.Snapshot)

	resp = call(t, r, `{"jsonrpc":"2.0","id":3,"method":"run.history","params":{"id":"`+created.ID+`"}}`)
	require.Nil(t, resp.Error)
	var hist struct {
		History []float64 `json:"history"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &hist))
	assert.Len(t, hist.History, 31)

	resp = call(t, r, `{"jsonrpc":"2.0","id":4,"method":"run.complete","params":{"id":"`+created.ID+`","refine":true}}`)
	require.Nil(t, resp.Error)
	var done RunView
	require.NoError(t, json.Unmarshal(resp.Result, &done))
	assert.Equal(t, pio.Finished, done.State)
	assert.NotNil(t, done.Refinement)

	resp = call(t, r, `{"jsonrpc":"2.0","id":5,"method":"run.step","params":{"id":"`+created.ID+`"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcServerError, resp.Error.Code)
	assert.Contains(t, string(resp.Error.Data), `"kind":"lifecycle"`)

	resp = call(t, r, `{"jsonrpc":"2.0","id":6,"method":"run.reset","params":{"id":"`+created.ID+`"}}`)
	require.Nil(t, resp.Error)
	var reset RunView
	require.NoError(t, json.Unmarshal(resp.Result, &reset))
	assert.Equal(t, 0, reset.Snapshot.Iteration)

	resp = call(t, r, `{"jsonrpc":"2.0","id":7,"method":"run.delete","params":{"id":"`+created.ID+`"}}`)
	require.Nil(t, resp.Error)

	resp = call(t, r, `{"jsonrpc":"2.0","id":8,"method":"run.status","params":{"id":"`+created.ID+`"}}`)
	require.NotNil(t, resp.Error)
	assert.Contains(t, string(resp.Error.Data), `"kind":"not_found"`)
}

func TestJSONRPCObjectivesList(t *testing.T) {
	_, r := testServer(t, testConfig(t))
	resp := call(t, r, `{"jsonrpc":"2.0","id":1,"method":"objectives.list"}`)
	require.Nil(t, resp.Error)

	var list []ObjectiveView
	require.NoError(t, json.Unmarshal(resp.Result, &list))
	assert.Len(t, list, 4)
}

func TestJSONRPCErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, rpcParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"run.status"}`, rpcInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, rpcInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"run.fly"}`, rpcMethodNotFound},
		{"missing id", `{"jsonrpc":"2.0","id":1,"method":"run.step","params":{}}`, rpcInvalidParams},
		{"no params", `{"jsonrpc":"2.0","id":1,"method":"run.status"}`, rpcInvalidParams},
		{"unknown run", `{"jsonrpc":"2.0","id":1,"method":"run.step","params":{"id":"x"}}`, rpcServerError},
		{"invalid config", `{"jsonrpc":"2.0","id":1,"method":"run.create","params":{"population_size":1}}`, rpcInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := testServer(t, testConfig(t))
			resp := call(t, r, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(&bytes.Buffer{}), WithRegisterer(nil))

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{
			name:       "valid error response",
			code:       rpcInvalidParams,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
		},
		{
			name:       "nil id",
			code:       rpcServerError,
			message:    "server error",
			id:         nil,
			expectedID: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id, nil)

			// JSON-RPC errors travel with HTTP 200
			assert.Equal(t, http.StatusOK, rr.Code, "status code should match")

			var response map[string]interface{}
			err := json.NewDecoder(rr.Body).Decode(&response)
			assert.NoError(t, err, "should decode response body")

			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			assert.NotContains(t, errObj, "data")

			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}
