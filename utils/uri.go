package utils

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrEmptyURI 输入为空
var ErrEmptyURI = errors.New("empty uri")

// ResolvePath 把普通路径或 file:// URI 转换为本地路径
func ResolvePath(uri string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", ErrEmptyURI
	}
	if !strings.HasPrefix(uri, "file://") {
		return filepath.Clean(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote file uri host %q", u.Host)
	}
	if u.Path == "" {
		return "", ErrEmptyURI
	}
	return filepath.FromSlash(u.Path), nil
}

// FileURI 把本地路径转换为 file:// URI
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
