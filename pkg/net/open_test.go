package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/readings.csv", true},
		{"HTTP://example.com/a", true},
		{"readings.csv", false},
		{"/tmp/readings.csv", false},
		{"file:///tmp/readings.csv", false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsURL(tt.in), tt.in)
	}
}

func TestGetHTTPClient(t *testing.T) {
	c := GetHTTPClient()
	require.NotNil(t, c)
	assert.NotZero(t, c.Timeout)
}

func TestOpen_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, clientAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/readings.csv":
			io.WriteString(w, "timestamp,ph\n")
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rc, err := Open(context.Background(), srv.URL+"/readings.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "timestamp,ph\n", string(b))

	_, err = Open(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, ErrorURLNotFound)

	_, err = Open(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrorURLNotFound)
}

func TestOpen_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, srv.URL)
	assert.Error(t, err)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	rc, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = Open(context.Background(), "")
	assert.Error(t, err)
}
