package ghrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

type release struct {
	TagName string         `json:"tag_name"`
	Assets  []releaseAsset `json:"assets"`
}

type releaseAsset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

var assetSelectMap = map[string][]string{
	"linuxamd64":   {"linux-amd64", "linux_amd64", "linux-x86_64", "linux-x86-64", "linux_x86_64", "amd64-linux", "x86_64-linux", "amd64_linux", "x86_64_linux"},
	"linuxarm64":   {"linux-arm64", "linux_arm64", "linux-aarch64", "linux_aarch64", "arm64-linux", "aarch64-linux", "arm64_linux", "aarch64_linux"},
	"windowsamd64": {"windows-amd64", "windows_amd64", "windows-x86_64", "windows-x86-64", "windows_x86_64", "amd64-windows", "x86_64-windows", "amd64_windows"},
	"windowsarm64": {"windows-arm64", "windows_arm64", "windows-aarch64", "windows_aarch64", "arm64-windows", "aarch64-windows"},
	"darwinamd64":  {"darwin-amd64", "darwin_amd64", "darwin-x86_64", "darwin-x86-64", "darwin_x86_64", "amd64-darwin", "x86_64-darwin", "macos-amd64", "macos-x86_64"},
	"darwinarm64":  {"darwin-arm64", "darwin_arm64", "darwin-aarch64", "darwin_aarch64", "arm64-darwin", "aarch64-darwin", "macos-arm64", "macos-aarch64"},
}

var repoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/?.*$`),
	regexp.MustCompile(`^github\.com/([^/]+)/([^/]+)/?.*$`),
	regexp.MustCompile(`^([^/]+)/([^/]+)$`),
}

var ignoredAssets = []string{
	"license", "readme", "changelog", "checksums", "sha256checksum", ".sha256", ".sig", ".pem",
}

func parseGitHubURL(url string) (string, string, error) {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	for _, pattern := range repoPatterns {
		matches := pattern.FindStringSubmatch(url)
		if len(matches) >= 3 {
			return matches[1], strings.TrimSuffix(matches[2], ".git"), nil
		}
	}
	return "", "", fmt.Errorf("invalid GitHub repository format: %s", url)
}

func latestRelease(ctx context.Context, client *utils.HTTPClient, apiURL, owner, repo string) (*release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", apiURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating API request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &mtd.StatusError{Code: resp.StatusCode}
	}
	var r release
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("error decoding API response: %w", err)
	}
	if len(r.Assets) == 0 {
		return nil, fmt.Errorf("no assets found in release %s", r.TagName)
	}
	return &r, nil
}

func ignored(name string) bool {
	for _, suffix := range ignoredAssets {
		if strings.Contains(name, suffix) {
			return true
		}
	}
	return false
}

// selectPlatformAsset picks the first asset whose name carries the
// os/arch pair, skipping checksums and documents.
func selectPlatformAsset(assets []releaseAsset, goos, goarch string) *releaseAsset {
	for i, asset := range assets {
		name := strings.ToLower(asset.Name)
		if ignored(name) {
			continue
		}
		for _, key := range assetSelectMap[goos+goarch] {
			if strings.Contains(name, key) {
				return &assets[i]
			}
		}
	}
	return nil
}

func matchAsset(assets []releaseAsset, pattern string) *releaseAsset {
	pattern = strings.ToLower(pattern)
	for i, asset := range assets {
		if strings.Contains(strings.ToLower(asset.Name), pattern) {
			return &assets[i]
		}
	}
	return nil
}
