// Package kaggle implements a minimal client for the Kaggle datasets
// API. It downloads a dataset archive into a local cache directory and
// extracts it, mirroring what the official clients do.
package kaggle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const pathDatasetDownload = "%s/api/v1/datasets/download/%s"

type Client interface {
	// DownloadDataset fetches the dataset archive identified by its
	// owner/slug handle and extracts it into the cache directory.
	// It returns the directory holding the extracted files.
	DownloadDataset(ctx context.Context, handle string) (string, error)
}

type client struct {
	client   *http.Client
	addr     string
	cacheDir string
	username string
	key      string
}

func NewClient(uri, cacheDir, username, key string) Client {
	return &client{http.DefaultClient, strings.TrimSuffix(uri, "/"), cacheDir, username, key}
}

func (c *client) DownloadDataset(ctx context.Context, handle string) (string, error) {
	slug := handle
	if i := strings.LastIndex(handle, "/"); i >= 0 {
		slug = handle[i+1:]
	}
	if slug == "" {
		return "", fmt.Errorf("kaggle: invalid dataset handle %q", handle)
	}

	archive := filepath.Join(c.cacheDir, slug+".zip")
	dest := filepath.Join(c.cacheDir, slug)

	if err := os.MkdirAll(c.cacheDir, 0700); err != nil {
		return "", err
	}
	if err := c.fetch(ctx, fmt.Sprintf(pathDatasetDownload, c.addr, handle), archive); err != nil {
		return "", err
	}
	if err := unzip(archive, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// fetch downloads rawURL into the named file, overwriting any previous
// download of the same archive.
func (c *client) fetch(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode > 299 { //nolint
		out, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kaggle: download error %d: %s", resp.StatusCode, string(out))
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0700); err != nil {
		return err
	}
	for _, f := range r.File {
		if err := extract(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extract(f *zip.File, dest string) error {
	// reject entries escaping the destination directory
	name := filepath.Join(dest, filepath.Clean("/"+f.Name))
	if !strings.HasPrefix(name, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("kaggle: archive entry %q outside destination", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(name, 0700)
	}
	if err := os.MkdirAll(filepath.Dir(name), 0700); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// CopyDir copies every regular file from src into the raw data
// directory, overwriting existing files so the stage stays idempotent.
func CopyDir(src, dest string) error {
	if err := os.MkdirAll(dest, 0700); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := CopyDir(filepath.Join(src, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
