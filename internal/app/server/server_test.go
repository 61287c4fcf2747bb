package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisdark/observer-ward/internal/config"
	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  &config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: "test"},
		Scanner: &config.ScannerConfig{TimeoutMS: 1000, ProbeWidth: 4, RuleWidth: 10, ReadSize: 4096},
	}
}

func sshDatabase(t *testing.T, port int) *probedb.Database {
	t.Helper()
	doc := fmt.Sprintf(`[{"directive_name":"NULL","protocol":"TCP","directive_str":"","ports":[%d],
	  "matches":[{"service":"ssh","pattern":"^SSH-[\\d.]+-OpenSSH_([\\w.]+)","version_info":"p/OpenSSH/ v/$1/"}]}]`, port)
	db, err := probedb.LoadBytes([]byte(doc), probedb.FormatJSON)
	require.NoError(t, err)
	return db
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthAndStats(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = doJSON(t, s, http.MethodGet, "/api/v1/probes/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats probedb.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Probes)
	assert.Equal(t, 1, stats.Rules)
}

func TestScanEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
			_ = conn.Close()
		}
	}()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := New(testConfig(), sshDatabase(t, port))
	w := doJSON(t, s, http.MethodPost, "/api/v1/scan", map[string]interface{}{"target": ln.Addr().String()})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Services []string `json:"services"`
		Phase    int      `json:"phase"`
		Hits     []struct {
			Version probedb.VersionInfo `json:"version"`
		} `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ssh"}, resp.Services)
	assert.Equal(t, 1, resp.Phase)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "9.6", resp.Hits[0].Version.Version)
}

func TestScanEndpointValidation(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodPost, "/api/v1/scan", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/scan", map[string]interface{}{"target": "no-port"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/scan", map[string]interface{}{"target": "127.0.0.1:22", "timeout_ms": MaxTimeoutMS + 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpoint(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"name": "ver", "regex": []string{`version=(\d+\.\d+)`}, "group": 1},
		"corpus":    "version=3.2;ok",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"ver","values":["3.2"]}`, w.Body.String())

	w = doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"xpath": []string{"//title"}},
		"header":    "Server: nginx",
		"body":      "<title>Demo</title>",
		"part":      "body",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"values":["Demo"]}`, w.Body.String())
}

func TestExtractEndpointErrors(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"regex": []string{"(unclosed"}},
		"corpus":    "x",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"regex": []string{"a"}, "bogus": true},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"regex": []string{"a"}},
		"part":      "trailer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpointHidesInternalValues(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"name": "token", "internal": true, "regex": []string{`t=\w+`}},
		"corpus":    "t=secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"token","internal":true,"values":[]}`, w.Body.String())
}

func TestExtractEndpointUsesRawCorpusForResponsePart(t *testing.T) {
	s := New(testConfig(), sshDatabase(t, 22))

	w := doJSON(t, s, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"extractor": map[string]interface{}{"regex": []string{"a\n\nb"}},
		"corpus":    "a\n\nb",
		"header":    "a",
		"body":      "b",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"values":["a\n\nb"]}`, w.Body.String())
}
