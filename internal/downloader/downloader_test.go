// file: internal/downloader/downloader_test.go
package downloader

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//  HTTPDownloader Tests
// ============================================================================

func TestHTTPDownloader_SupportsScheme(t *testing.T) {
	d := &HTTPDownloader{}
	testCases := []struct {
		scheme   string
		expected bool
	}{
		{"http", true},
		{"https", true},
		{"file", false},
		{"ftp", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.scheme, func(t *testing.T) {
			assert.Equal(t, tc.expected, d.SupportsScheme(tc.scheme))
		})
	}
}

func TestHTTPDownloader_Download(t *testing.T) {
	t.Run("successful download", func(t *testing.T) {
		expectedContent := `[{"id":1}]`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(expectedContent))
		}))
		defer server.Close()

		d := &HTTPDownloader{Client: server.Client()}
		sourceURL, _ := url.Parse(server.URL)

		reader, err := d.Download(sourceURL)
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, expectedContent, string(content))
	})

	t.Run("nil client falls back to default", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		d := &HTTPDownloader{}
		sourceURL, _ := url.Parse(server.URL)

		reader, err := d.Download(sourceURL)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(content))
	})

	t.Run("server error response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("The requested resource was not found"))
		}))
		defer server.Close()

		d := &HTTPDownloader{Client: server.Client()}
		sourceURL, _ := url.Parse(server.URL)

		_, err := d.Download(sourceURL)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP请求失败: 状态码 404")
		assert.Contains(t, err.Error(), "The requested resource was not found")
	})

	t.Run("network error", func(t *testing.T) {
		d := &HTTPDownloader{Client: http.DefaultClient}
		sourceURL, _ := url.Parse("http://127.0.0.1:1")

		_, err := d.Download(sourceURL)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP请求失败")
	})
}

// ============================================================================
//  FileDownloader Tests
// ============================================================================

func TestFileDownloader_SupportsScheme(t *testing.T) {
	d := &FileDownloader{}
	assert.True(t, d.SupportsScheme("file"))
	assert.False(t, d.SupportsScheme("http"))
}

func TestFileDownloader_Download(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("successful download", func(t *testing.T) {
		expectedContent := "local file content"
		filePath := filepath.Join(tempDir, "testfile.txt")
		err := os.WriteFile(filePath, []byte(expectedContent), 0644)
		require.NoError(t, err)

		fileURL := "file:///" + filepath.ToSlash(filePath)
		sourceURL, err := url.Parse(fileURL)
		require.NoError(t, err)

		d := &FileDownloader{}
		reader, err := d.Download(sourceURL)
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, expectedContent, string(content))
	})

	t.Run("file not found", func(t *testing.T) {
		nonExistentPath := filepath.Join(tempDir, "nonexistent.txt")
		fileURL := "file:///" + filepath.ToSlash(nonExistentPath)
		sourceURL, err := url.Parse(fileURL)
		require.NoError(t, err)

		d := &FileDownloader{}
		_, err = d.Download(sourceURL)

		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist), "error should indicate file not found")
	})
}

// ============================================================================
//  Helper Function Tests
// ============================================================================

func TestResolveLocalFilePath(t *testing.T) {
	t.Run("standard unix path", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("Skipping unix path test on windows system")
		}
		u, _ := url.Parse("file:///home/user/file.txt")
		path := resolveLocalFilePath(u)
		assert.Equal(t, "/home/user/file.txt", path)
	})

	t.Run("standard windows path", func(t *testing.T) {
		if runtime.GOOS != "windows" {
			t.Skip("Skipping windows path test on non-windows system")
		}
		u, _ := url.Parse("file:///C:/Users/test/file.txt")
		path := resolveLocalFilePath(u)
		assert.Equal(t, `C:\Users\test\file.txt`, path)
	})

	t.Run("windows path with space", func(t *testing.T) {
		if runtime.GOOS != "windows" {
			t.Skip("Skipping windows path test on non-windows system")
		}
		// URL中空格被编码为%20，url.Parse会自动解码
		u, _ := url.Parse("file:///C:/Program%20Files/app.exe")
		path := resolveLocalFilePath(u)
		assert.Equal(t, `C:\Program Files\app.exe`, path)
	})
}

func TestDefaults(t *testing.T) {
	ds := Defaults()
	require.Len(t, ds, 2)

	schemes := map[string]bool{}
	for _, scheme := range []string{"http", "https", "file"} {
		for _, d := range ds {
			if d.SupportsScheme(scheme) {
				schemes[scheme] = true
			}
		}
	}
	assert.Len(t, schemes, 3, "内建集合应覆盖 http/https/file 三种协议")
}
