package kaggle

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveFixture(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadDataset(t *testing.T) {
	archive := archiveFixture(t, map[string]string{
		"hltb_game.csv": "id,name\n1,Portal\n",
	})

	var gotPath, gotUser, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotKey, _ = r.BasicAuth()
		w.Write(archive)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	cli := NewClient(srv.URL, cacheDir, "someuser", "somekey")

	dir, err := cli.DownloadDataset(context.Background(), "b4n4n4p0wer/how-long-to-beat-video-game-playtime-dataset")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/datasets/download/b4n4n4p0wer/how-long-to-beat-video-game-playtime-dataset", gotPath)
	assert.Equal(t, "someuser", gotUser)
	assert.Equal(t, "somekey", gotKey)
	assert.Equal(t, filepath.Join(cacheDir, "how-long-to-beat-video-game-playtime-dataset"), dir)

	raw, err := os.ReadFile(filepath.Join(dir, "hltb_game.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Portal\n", string(raw))
}

func TestDownloadDatasetServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, t.TempDir(), "", "")
	_, err := cli.DownloadDataset(context.Background(), "owner/slug")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDownloadDatasetRejectsEmptyHandle(t *testing.T) {
	cli := NewClient("http://localhost", t.TempDir(), "", "")
	_, err := cli.DownloadDataset(context.Background(), "owner/")
	require.Error(t, err)
}

func TestUnzipRejectsTraversal(t *testing.T) {
	archive := archiveFixture(t, map[string]string{
		"../escape.txt": "nope",
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(path, archive, 0600))

	err := unzip(path, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.csv"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.csv"), []byte("b"), 0600))

	dest := t.TempDir()
	require.NoError(t, CopyDir(src, dest))

	raw, err := os.ReadFile(filepath.Join(dest, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(raw))

	raw, err = os.ReadFile(filepath.Join(dest, "nested", "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(raw))
}
