package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ezachrisen/workflow"
	"github.com/ezachrisen/workflow/ruleset"
	"github.com/ezachrisen/workflow/server"
	"github.com/matryer/is"
)

func setup(t *testing.T) (*workflow.Vault, *httptest.Server) {
	t.Helper()
	rs, err := ruleset.LoadFile("../testdata/example.yaml")
	if err != nil {
		t.Fatal(err)
	}
	v, err := rs.Vault()
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(v, server.Entry(rs.EntryPoint()), server.Domain(rs.Bounds()), server.Parallel(4), server.Logger(log)))
	t.Cleanup(ts.Close)
	return v, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp, out
}

func TestClassify(t *testing.T) {
	is := is.New(t)
	v, ts := setup(t)

	resp, out := do(t, http.MethodPost, ts.URL+"/api/v1/classify", `{"record": {"x": 787, "m": 2655, "a": 1222, "s": 2876}}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get(server.RevisionHeader), v.Revision())
	is.Equal(out["accepted"], true)
	is.Equal(out["outcome"], "A")

	route := out["route"].([]any)
	is.Equal(len(route), 4)
	is.Equal(route[1].(map[string]any)["workflow"], "qqz")
	is.Equal(route[1].(map[string]any)["condition"], "s>2770")
}

func TestRateAndCount(t *testing.T) {
	is := is.New(t)
	_, ts := setup(t)

	records := `{"records": [
		{"x": 787, "m": 2655, "a": 1222, "s": 2876},
		{"x": 1679, "m": 44, "a": 2067, "s": 496},
		{"x": 2036, "m": 264, "a": 79, "s": 2244},
		{"x": 2461, "m": 1339, "a": 466, "s": 291},
		{"x": 2127, "m": 1623, "a": 2188, "s": 1013}
	]}`
	resp, out := do(t, http.MethodPost, ts.URL+"/api/v1/rate", records)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["sum"], float64(19114))
	is.Equal(out["accepted"], float64(3))

	resp, out = do(t, http.MethodPost, ts.URL+"/api/v1/count", `{}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["accepted"], float64(167409079868000))
	is.Equal(out["total"], float64(256000000000000))

	resp, out = do(t, http.MethodPost, ts.URL+"/api/v1/count", `{"domain": {"lo": 1, "hi": 10}, "entry": "crn"}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["accepted"], float64(0))
	is.Equal(out["total"], float64(10000))
}

func TestBadRequests(t *testing.T) {
	_, ts := setup(t)

	cases := []struct {
		path   string
		body   string
		status int
	}{
		{"/api/v1/classify", `{"record": {"x": 1}, "extra": true}`, http.StatusBadRequest},
		{"/api/v1/classify", `not json`, http.StatusBadRequest},
		{"/api/v1/classify", `{"record": {"x": 1}, "entry": "nope"}`, http.StatusBadRequest},
		{"/api/v1/count", `{"domain": {"lo": 5, "hi": 1}}`, http.StatusBadRequest},
		{"/api/v1/count", `{"domain": {"lo": 1, "hi": 1000000}}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, out := do(t, http.MethodPost, ts.URL+c.path, c.body)
		if resp.StatusCode != c.status {
			t.Errorf("%s %s: expected %d, got %d (%v)", c.path, c.body, c.status, resp.StatusCode, out)
		}
		if out["error"] == nil {
			t.Errorf("%s %s: expected an error message", c.path, c.body)
		}
	}
}

func TestLoopingRecord(t *testing.T) {
	is := is.New(t)
	v, ts := setup(t)

	// crn forwards back to in, so records reaching crn never terminate
	is.NoErr(v.Mutate(workflow.Put(workflow.Definition{Name: "crn", Default: "in"})))

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/v1/classify", `{"record": {"x": 2461, "m": 1339, "a": 466, "s": 291}}`)
	is.Equal(resp.StatusCode, http.StatusUnprocessableEntity)
}

func TestWorkflowLifecycle(t *testing.T) {
	is := is.New(t)
	v, ts := setup(t)
	rev := v.Revision()

	resp, out := do(t, http.MethodGet, ts.URL+"/api/v1/workflows", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(out["workflows"].([]any)), 11)

	resp, out = do(t, http.MethodGet, ts.URL+"/api/v1/workflows/px", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["default"], "rfg")

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/v1/workflows/nope", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)

	// crn now accepts everything it sees
	resp, out = do(t, http.MethodPut, ts.URL+"/api/v1/workflows/crn", `{"default": "A"}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(out["revision"] != rev)
	is.Equal(out["revision"], v.Revision())

	resp, out = do(t, http.MethodPost, ts.URL+"/api/v1/classify", `{"record": {"x": 2461, "m": 1339, "a": 466, "s": 291}}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["accepted"], true)

	// broken definitions leave the graph alone
	resp, _ = do(t, http.MethodPut, ts.URL+"/api/v1/workflows/crn", `{"default": "missing"}`)
	is.Equal(resp.StatusCode, http.StatusUnprocessableEntity)
	resp, _ = do(t, http.MethodPut, ts.URL+"/api/v1/workflows/crn", `{"name": "other", "default": "A"}`)
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	// qkq still forwards to crn
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/workflows/crn", "")
	is.Equal(resp.StatusCode, http.StatusConflict)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/v1/workflows/qkq", `{"rules": [{"field": "x", "op": "<", "threshold": 1416, "outcome": "A"}], "default": "R"}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/workflows/crn", "")
	is.Equal(resp.StatusCode, http.StatusNoContent)
	is.Equal(resp.Header.Get(server.RevisionHeader), v.Revision())

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/workflows/crn", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)
	is.Equal(v.Graph().Len(), 10)
}

func TestHealthAndTree(t *testing.T) {
	is := is.New(t)
	v, ts := setup(t)

	resp, out := do(t, http.MethodGet, ts.URL+"/api/v1/health", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["workflows"], float64(11))
	is.Equal(out["revision"], v.Revision())

	resp, err := http.Get(ts.URL + "/api/v1/tree?entry=qs")
	is.NoErr(err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.HasPrefix(string(b), "qs\n├── s>3448 → A\n"))

	resp2, _ := do(t, http.MethodGet, ts.URL+"/api/v1/tree?entry=nope", "")
	is.Equal(resp2.StatusCode, http.StatusNotFound)
}

func TestGetWorkflowInEffect(t *testing.T) {
	is := is.New(t)
	v, err := workflow.NewVault([]workflow.Definition{
		{Name: "in", Default: "R"},
		{Name: "tree", Default: "R"},
		{Name: "in", Rules: []workflow.RuleDefinition{{Field: "x", Op: "<", Threshold: 5, Outcome: "tree"}}, Default: "A"},
	})
	is.NoErr(err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(v, server.Logger(log)))
	t.Cleanup(ts.Close)

	resp, out := do(t, http.MethodGet, ts.URL+"/api/v1/workflows/in", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["default"], "A")
	is.Equal(len(out["rules"].([]any)), 1)

	resp, out = do(t, http.MethodGet, ts.URL+"/api/v1/workflows", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(out["workflows"].([]any)), 2)

	resp, out = do(t, http.MethodGet, ts.URL+"/api/v1/workflows/tree", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["name"], "tree")

	resp, out = do(t, http.MethodPost, ts.URL+"/api/v1/classify", `{"record": {"x": 9, "m": 1, "a": 1, "s": 1}}`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(out["accepted"], true)
}
