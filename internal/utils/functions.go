package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns the first "name-(n).ext" next to outputPath that
// exists neither as a file nor as an in-progress download.
func RenewOutputPath(fs afero.Fs, outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for index := 1; ; index++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if !exists(fs, candidate) && !exists(fs, candidate+WorkingSuffix) {
			return candidate
		}
	}
}

func exists(fs afero.Fs, name string) bool {
	ok, err := afero.Exists(fs, name)
	return ok || err != nil
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// GenerateFileName picks a local name from the last path segment of a URL,
// falling back to the current Unix time in milliseconds.
func GenerateFileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" && name != "" {
			if unescaped, err := url.PathUnescape(name); err == nil {
				name = unescaped
			}
			return name
		}
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// NormalizePath resolves p against the working directory.
func NormalizePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// FindWorkingFiles lists the in-progress downloads directly inside dir.
func FindWorkingFiles(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), WorkingSuffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// CleanWorkingFiles removes every in-progress download in dir and returns
// the removed paths.
func CleanWorkingFiles(fs afero.Fs, dir string) ([]string, error) {
	files, err := FindWorkingFiles(fs, dir)
	if err != nil {
		return nil, err
	}
	for i, file := range files {
		if err := fs.Remove(file); err != nil {
			return files[:i], err
		}
	}
	return files, nil
}
