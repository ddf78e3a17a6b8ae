package assets

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/srcview/pkg/vpk"
)

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(strings.TrimPrefix(path, "/"))
}

// VPKSource serves files from a VPK archive.
type VPKSource struct {
	archive *vpk.Archive
	path    string
}

// OpenVPK opens a "<name>_dir.vpk" file as a source.
func OpenVPK(path string) (*VPKSource, error) {
	a, err := vpk.Open(path)
	if err != nil {
		return nil, err
	}
	return &VPKSource{archive: a, path: path}, nil
}

func (s *VPKSource) Name() string { return "vpk:" + filepath.Base(s.path) }

func (s *VPKSource) Read(_ context.Context, path string) ([]byte, error) {
	data, err := s.archive.Read(path)
	if errors.Is(err, vpk.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

func (s *VPKSource) Close() error { return s.archive.Close() }

// DirSource serves loose files below a root directory. Lookups are
// case-insensitive on the file name component.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

func (s *DirSource) Name() string { return "dir:" + s.root }

func (s *DirSource) Read(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	data, err := os.ReadFile(full)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Fall back to a case-insensitive match inside the parent directory.
	entries, derr := os.ReadDir(filepath.Dir(full))
	if derr != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	base := filepath.Base(full)
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), base) {
			return os.ReadFile(filepath.Join(filepath.Dir(full), e.Name()))
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

func (s *DirSource) Close() error { return nil }

// PakfileSource serves files from a map's embedded zip pakfile.
type PakfileSource struct {
	name  string
	files map[string]*zip.File
}

// OpenPakfile reads the pakfile lump of a map. An empty lump yields an
// empty source.
func OpenPakfile(name string, data []byte) (*PakfileSource, error) {
	s := &PakfileSource{name: name, files: make(map[string]*zip.File)}
	if len(data) == 0 {
		return s, nil
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading pakfile: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		s.files[normalizePath(f.Name)] = f
	}
	return s, nil
}

// Len returns the number of files in the pakfile.
func (s *PakfileSource) Len() int { return len(s.files) }

func (s *PakfileSource) Name() string { return "pakfile:" + s.name }

func (s *PakfileSource) Read(_ context.Context, path string) ([]byte, error) {
	f, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *PakfileSource) Close() error { return nil }

// HTTPSource fetches files relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source for baseURL. A nil client uses
// http.DefaultClient.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: u, client: client}, nil
}

func (s *HTTPSource) Name() string { return "http:" + s.base.String() }

func (s *HTTPSource) Read(ctx context.Context, path string) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
