package ghrelease

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	mtdhttp "github.com/tanq16/mtd/internal/downloaders/http"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
	}{
		{"https://github.com/tanq16/mtd", "tanq16", "mtd"},
		{"https://github.com/tanq16/mtd/releases/latest", "tanq16", "mtd"},
		{"github.com/tanq16/mtd.git", "tanq16", "mtd"},
		{"tanq16/mtd", "tanq16", "mtd"},
	}
	for _, tt := range tests {
		owner, repo, err := parseGitHubURL(tt.in)
		if err != nil || owner != tt.owner || repo != tt.repo {
			t.Errorf("parseGitHubURL(%q) = %q, %q, %v", tt.in, owner, repo, err)
		}
	}
	if _, _, err := parseGitHubURL("https://example.com/a/b/c"); err == nil {
		t.Error("non-GitHub URL accepted")
	}
}

func TestSelectPlatformAsset(t *testing.T) {
	assets := []releaseAsset{
		{Name: "checksums-linux-amd64.txt"},
		{Name: "tool-darwin-arm64.tar.gz"},
		{Name: "tool-Linux-x86_64.tar.gz"},
	}
	if got := selectPlatformAsset(assets, "linux", "amd64"); got == nil || got.Name != "tool-Linux-x86_64.tar.gz" {
		t.Errorf("linux/amd64 selected %+v", got)
	}
	if got := selectPlatformAsset(assets, "darwin", "arm64"); got == nil || got.Name != "tool-darwin-arm64.tar.gz" {
		t.Errorf("darwin/arm64 selected %+v", got)
	}
	if got := selectPlatformAsset(assets, "windows", "arm64"); got != nil {
		t.Errorf("windows/arm64 selected %+v", got)
	}
}

func newReleaseServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/repos/tanq16/tool/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(release{
			TagName: "v1.2.0",
			Assets: []releaseAsset{
				{Name: "tool-linux-amd64.tar.gz", Size: int64(len(data)), DownloadURL: srv.URL + "/dl/tool-linux-amd64.tar.gz"},
				{Name: "tool-windows-amd64.zip", Size: 10, DownloadURL: srv.URL + "/dl/tool-windows-amd64.zip"},
			},
		})
	})
	mux.HandleFunc("/dl/tool-linux-amd64.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "tool.tar.gz", time.Time{}, bytes.NewReader(data))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReleaseDownload(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 241)
	}
	srv := newReleaseServer(t, data)
	fs := afero.NewOsFs()
	out := filepath.Join(t.TempDir(), "tool.tar.gz")
	d := &GitReleaseDownloader{HTTP: &mtdhttp.HTTPDownloader{Fs: fs}, apiURL: srv.URL}
	job := &utils.MTDJob{
		JobType:    "github-release",
		URL:        "https://github.com/tanq16/tool",
		OutputPath: out,
		Threads:    4,
		Metadata:   map[string]any{"asset": "linux-amd64"},
	}

	ctx := context.Background()
	if err := d.ValidateJob(job); err != nil {
		t.Fatalf("ValidateJob: %v", err)
	}
	if err := d.BuildJob(ctx, job); err != nil {
		t.Fatalf("BuildJob: %v", err)
	}
	if job.URL != srv.URL+"/dl/tool-linux-amd64.tar.gz" || job.Metadata["tagName"] != "v1.2.0" {
		t.Fatalf("asset not resolved: %s %v", job.URL, job.Metadata)
	}
	if err := d.Download(ctx, job); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := afero.ReadFile(fs, out)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("downloaded content mismatch (%d bytes, %v)", len(got), err)
	}
	if ok, _ := afero.Exists(fs, out+mtd.WorkingFileSuffix); ok {
		t.Fatal("working file left behind")
	}
}

func TestReleaseNoMatchingAsset(t *testing.T) {
	srv := newReleaseServer(t, []byte("x"))
	d := &GitReleaseDownloader{HTTP: &mtdhttp.HTTPDownloader{Fs: afero.NewMemMapFs()}, apiURL: srv.URL}
	job := &utils.MTDJob{URL: "tanq16/tool", Metadata: map[string]any{"asset": "freebsd"}}
	d.ValidateJob(job)
	if err := d.BuildJob(context.Background(), job); err == nil {
		t.Fatal("expected no matching asset error")
	}

	job = &utils.MTDJob{URL: "tanq16/missing", Metadata: map[string]any{}}
	d.ValidateJob(job)
	var se *mtd.StatusError
	if err := d.BuildJob(context.Background(), job); !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("missing repository: got %v", err)
	}
}
