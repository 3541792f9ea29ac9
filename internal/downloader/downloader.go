// file: internal/downloader/downloader.go
package downloader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Downloader 是所有数据源下载器都必须实现的接口。
// 查询引擎摄取 url 类型数据源时按协议逐个匹配。
type Downloader interface {
	// SupportsScheme 支持的协议 (e.g., "http", "https", "file")
	SupportsScheme(scheme string) bool
	// Download 执行下载，返回一个可读取内容的对象
	Download(sourceURL *url.URL) (io.ReadCloser, error)
}

// Defaults 返回内建的下载器集合。
func Defaults() []Downloader {
	return []Downloader{
		&HTTPDownloader{},
		&FileDownloader{},
	}
}

// HTTPDownloader =============================================================================
//
//	HTTP/HTTPS 下载器实现
//
// =============================================================================
type HTTPDownloader struct {
	// Client 为 nil 时使用带超时的默认客户端。
	Client *http.Client
}

func (d *HTTPDownloader) SupportsScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func (d *HTTPDownloader) Download(sourceURL *url.URL) (io.ReadCloser, error) {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Get(sourceURL.String())
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP请求失败: 状态码 %d, 响应: %s", resp.StatusCode, snippet)
	}
	return resp.Body, nil
}

// FileDownloader =============================================================================
//
//	本地文件“下载”器
//
// =============================================================================
type FileDownloader struct{}

func (d *FileDownloader) SupportsScheme(scheme string) bool {
	return scheme == "file"
}

func (d *FileDownloader) Download(sourceURL *url.URL) (io.ReadCloser, error) {
	return os.Open(resolveLocalFilePath(sourceURL))
}

// resolveLocalFilePath 把 file:// URL 还原成本地路径。
// 例如 "file:///C:/Users/..." 的 Path 字段是 "/C:/Users/..."，
// 在 Windows 上需要去掉这个前导斜杠。
func resolveLocalFilePath(sourceURL *url.URL) string {
	path := filepath.FromSlash(sourceURL.Path)
	if len(path) > 2 && path[0] == filepath.Separator && path[2] == ':' {
		path = path[1:]
	}
	return path
}
