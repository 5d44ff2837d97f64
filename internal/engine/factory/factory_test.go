package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caracaldl/caracal/internal/caracalerr"
	"github.com/caracaldl/caracal/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DefaultOutputDirectory = t.TempDir()
	cfg.ConnectionTimeout = 5 * time.Second
	cfg.MinimumChunkSize = 64
	return cfg
}

func TestCreateNewTaskRangeMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, 4096)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "4096")
		if r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", "bytes 0-0/4096")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(body[:1])
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := New(testConfig(t))
	task := CreateTask{URI: srv.URL + "/file.bin", ConcurrentNumber: 2}

	d, err := f.CreateNewTask(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestCreateNewTaskUnsupportedScheme(t *testing.T) {
	f := New(testConfig(t))
	_, err := f.CreateNewTask(context.Background(), CreateTask{URI: "ftp://example.test/file"})
	require.Error(t, err)
	require.Equal(t, caracalerr.KindBadInput, caracalerr.KindOf(err))
}

func TestCreateNewTaskRejectsExistingDestinationWithoutControlFile(t *testing.T) {
	cfg := testConfig(t)
	dest := cfg.DefaultOutputDirectory + "/existing.bin"
	require.NoError(t, os.WriteFile(dest, []byte("already here"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		_, _ = w.Write(make([]byte, 10))
	}))
	defer srv.Close()

	f := New(cfg)
	_, err := f.CreateNewTask(context.Background(), CreateTask{URI: srv.URL + "/existing.bin", Filename: "existing.bin"})
	require.Error(t, err)
	require.Equal(t, caracalerr.KindBadInput, caracalerr.KindOf(err))
}

func TestGuessFilenameFallsBackToIndexHtml(t *testing.T) {
	require.Equal(t, "index.html", guessFilename("http://example.test/"))
	require.Equal(t, "report.csv", guessFilename("http://example.test/dir/report.csv"))
}
