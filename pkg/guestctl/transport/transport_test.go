package transport

import (
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadTLSConfig(t *testing.T) {
	t.Run("system trust store", func(t *testing.T) {
		config, err := LoadTLSConfig(TLSPolicy{})
		require.NoError(t, err)
		assert.False(t, config.InsecureSkipVerify)
		assert.Nil(t, config.RootCAs)
	})

	t.Run("insecure mode", func(t *testing.T) {
		config, err := LoadTLSConfig(TLSPolicy{InsecureSkipVerify: true})
		require.NoError(t, err)
		assert.True(t, config.InsecureSkipVerify)
	})

	t.Run("pinned file and insecure are exclusive", func(t *testing.T) {
		_, err := LoadTLSConfig(TLSPolicy{CAFile: "ca.pem", InsecureSkipVerify: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("nonexistent CA file", func(t *testing.T) {
		_, err := LoadTLSConfig(TLSPolicy{CAFile: "/nonexistent/ca.pem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read CA file")
	})

	t.Run("invalid CA file content", func(t *testing.T) {
		caFile := filepath.Join(t.TempDir(), "invalid-ca.pem")
		require.NoError(t, os.WriteFile(caFile, []byte("not a valid certificate"), 0o600))

		_, err := LoadTLSConfig(TLSPolicy{CAFile: caFile})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse CA file")
	})
}

func TestNewWithPinnedCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	caFile := filepath.Join(t.TempDir(), "guest.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))

	pinned, err := New(Options{BaseURL: server.URL, TLS: TLSPolicy{CAFile: caFile}, RetryCount: -1})
	require.NoError(t, err)
	resp, err := pinned.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	untrusted, err := New(Options{BaseURL: server.URL, RetryCount: -1})
	require.NoError(t, err)
	_, err = untrusted.R().Get("/")
	require.Error(t, err)
}

func TestNewSetsHeaders(t *testing.T) {
	var requestID, userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get(RequestIDHeader)
		userAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := New(Options{BaseURL: server.URL, UserAgent: "guestctl-test", Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	_, err = c.R().Get("/ping")
	require.NoError(t, err)

	assert.Equal(t, "guestctl-test", userAgent)
	_, parseErr := uuid.Parse(requestID)
	assert.NoError(t, parseErr)
}

func TestNewRetriesTransportErrors(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	var accepted int32
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepted, 1)
			_ = conn.Close()
		}
	}()

	c, err := New(Options{
		BaseURL:      "http://" + listener.Addr().String(),
		RetryCount:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)

	_, err = c.R().Get("/")
	require.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&accepted), int32(3))
}

func TestNewDoesNotRetryHTTPErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, err := New(Options{BaseURL: server.URL, RetryCount: 3, RetryWait: time.Millisecond})
	require.NoError(t, err)
	resp, err := c.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryCountDefaults(t *testing.T) {
	assert.Equal(t, 0, retryCount(-1))
	assert.Equal(t, DefaultRetryCount, retryCount(0))
	assert.Equal(t, 5, retryCount(5))
	assert.Equal(t, DefaultTimeout, durationOr(0, DefaultTimeout))
	assert.Equal(t, time.Second, durationOr(time.Second, DefaultTimeout))
}
