package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lendpool/native/lending"
	"lendpool/rpc/modules"
	"lendpool/storage"
)

const testToken = "test-token"

const testNow int64 = 1_700_000_000

func newTestServer(t *testing.T) (*httptest.Server, *modules.LendingModule) {
	t.Helper()
	engine := lending.NewEngine(lending.NewStore(storage.NewMemDB()))
	module := modules.NewLendingModule(engine)
	module.SetClock(func() int64 { return testNow })
	server := NewServer(module, Config{AuthToken: testToken})
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(ts.Close)
	return ts, module
}

func call(t *testing.T, ts *httptest.Server, token, method string, params ...interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	payload, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultField(t *testing.T, decoded RPCResponse, field string) interface{} {
	t.Helper()
	result, ok := decoded.Result.(map[string]interface{})
	require.True(t, ok, "result is not an object: %+v", decoded)
	return result[field]
}

func bootstrapPool(t *testing.T, ts *httptest.Server) {
	t.Helper()
	_, decoded := call(t, ts, testToken, "lend_initializePool", map[string]string{"caller": "admin"})
	require.Nil(t, decoded.Error)
	_, decoded = call(t, ts, testToken, "lend_contribute", map[string]interface{}{
		"caller": "lender-1", "lender": "lender-1", "amount": 1000,
	})
	require.Nil(t, decoded.Error)
}

func TestInitializeAndContribute(t *testing.T) {
	ts, _ := newTestServer(t)
	bootstrapPool(t, ts)

	_, decoded := call(t, ts, "", "lend_getLenderBalance", "lender-1")
	require.Nil(t, decoded.Error)
	require.EqualValues(t, 1000, resultField(t, decoded, "balance"))

	_, decoded = call(t, ts, "", "lend_getPool")
	require.Nil(t, decoded.Error)
	require.EqualValues(t, 1000, resultField(t, decoded, "totalFunds"))
}

func TestWriteMethodsRequireAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, decoded := call(t, ts, "", "lend_initializePool", map[string]string{"caller": "admin"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)

	resp, decoded = call(t, ts, "wrong-token", "lend_initializePool", map[string]string{"caller": "admin"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, decoded.Error)
}

func TestReadsBypassAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	_, decoded := call(t, ts, "", "lend_getLenderBalance", "nobody")
	require.Nil(t, decoded.Error)
	// Unknown lenders read as zero by convention.
	require.EqualValues(t, 0, resultField(t, decoded, "balance"))
}

func TestLoanRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	bootstrapPool(t, ts)

	_, decoded := call(t, ts, testToken, "lend_requestLoan", map[string]interface{}{
		"caller": "borrower-1", "borrower": "borrower-1",
		"principal": 500, "rateBps": 1000, "dueDate": testNow + 30*24*3600,
	})
	require.Nil(t, decoded.Error)
	require.Equal(t, "borrower-1-1", resultField(t, decoded, "loanId"))

	_, decoded = call(t, ts, "", "lend_getLoanStatus", map[string]string{"borrower": "borrower-1"})
	require.Nil(t, decoded.Error)
	require.Equal(t, "active", resultField(t, decoded, "status"))

	// No time has elapsed, so exactly the principal is owed. A partial
	// payment leaves the loan active; paying off the remainder settles it.
	_, decoded = call(t, ts, testToken, "lend_repayLoan", map[string]interface{}{
		"caller": "borrower-1", "borrower": "borrower-1", "amount": 400,
	})
	require.Nil(t, decoded.Error)
	require.Equal(t, false, resultField(t, decoded, "settled"))
	require.Equal(t, "active", resultField(t, decoded, "status"))

	_, decoded = call(t, ts, testToken, "lend_repayLoan", map[string]interface{}{
		"caller": "borrower-1", "borrower": "borrower-1", "amount": 100,
	})
	require.Nil(t, decoded.Error)
	require.Equal(t, true, resultField(t, decoded, "settled"))
	require.Equal(t, "repaid", resultField(t, decoded, "status"))

	_, decoded = call(t, ts, "", "lend_getPool")
	require.Nil(t, decoded.Error)
	require.EqualValues(t, 1000, resultField(t, decoded, "availableFunds"))
}

func TestImpersonationIsForbidden(t *testing.T) {
	ts, _ := newTestServer(t)
	bootstrapPool(t, ts)
	resp, decoded := call(t, ts, testToken, "lend_contribute", map[string]interface{}{
		"caller": "mallory", "lender": "lender-1", "amount": 50,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestBusinessConflictsMapToConflictStatus(t *testing.T) {
	ts, _ := newTestServer(t)
	bootstrapPool(t, ts)
	resp, decoded := call(t, ts, testToken, "lend_initializePool", map[string]string{"caller": "admin"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, decoded.Error)

	resp, decoded = call(t, ts, testToken, "lend_repayLoan", map[string]interface{}{
		"caller": "borrower-9", "borrower": "borrower-9", "amount": 10,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, decoded.Error)
}

func TestInsufficientLiquidityMapsToResourceLimit(t *testing.T) {
	ts, _ := newTestServer(t)
	bootstrapPool(t, ts)
	resp, decoded := call(t, ts, testToken, "lend_requestLoan", map[string]interface{}{
		"caller": "borrower-1", "borrower": "borrower-1",
		"principal": 5000, "rateBps": 1000, "dueDate": testNow + 3600,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, decoded.Error)
}

func TestUnknownMethod(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, decoded := call(t, ts, "", "lend_unknown")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeMethodNotFound, decoded.Error.Code)
}

func TestMalformedRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL, "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = ts.Client().Post(ts.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimiting(t *testing.T) {
	engine := lending.NewEngine(lending.NewStore(storage.NewMemDB()))
	module := modules.NewLendingModule(engine)
	server := NewServer(module, Config{AuthToken: testToken, RequestsPerMinute: 60, Burst: 2})
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, _ := call(t, ts, "", "lend_getPool")
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited, "expected at least one rate-limited response")
}

func TestRateLimiterPrunesIdleVisitors(t *testing.T) {
	engine := lending.NewEngine(lending.NewStore(storage.NewMemDB()))
	module := modules.NewLendingModule(engine)
	server := NewServer(module, Config{AuthToken: testToken, RequestsPerMinute: 600, Burst: 5})
	server.visitorTTL = 20 * time.Millisecond
	ts := httptest.NewServer(http.HandlerFunc(server.handle))
	defer ts.Close()

	_, decoded := call(t, ts, "", "lend_getPool")
	require.Nil(t, decoded.Error)

	server.mu.Lock()
	populated := len(server.visitors)
	server.mu.Unlock()
	require.Equal(t, 1, populated)

	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.visitors) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEarningsEndpoint(t *testing.T) {
	ts, module := newTestServer(t)
	bootstrapPool(t, ts)
	_, decoded := call(t, ts, testToken, "lend_requestLoan", map[string]interface{}{
		"caller": "borrower-1", "borrower": "borrower-1",
		"principal": 1000, "rateBps": 1000, "dueDate": testNow + 365*24*3600,
	})
	require.Nil(t, decoded.Error)

	// A year later the loan has accrued close to a full year of interest.
	module.SetClock(func() int64 { return testNow + 31_536_000 })
	_, decoded = call(t, ts, "", "lend_getLenderEarnings", "lender-1")
	require.Nil(t, decoded.Error)
	require.EqualValues(t, 100, resultField(t, decoded, "earnings"))
}
