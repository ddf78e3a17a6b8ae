// Package export writes a partitioned map to interchange formats:
// lightmap pages as WebP images and world geometry as binary glTF.
package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/engine/lightmap"
	"github.com/Faultbox/srcview/internal/logger"
)

// WriteLightmaps encodes every atlas page as a lossless WebP file in dir
// and returns the written paths in page order.
func WriteLightmaps(dir string, a *lightmap.Atlas) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(a.Pages))
	for i, p := range a.Pages {
		path := filepath.Join(dir, fmt.Sprintf("lightmap_%03d.webp", i))
		if err := writeWebP(path, p); err != nil {
			return paths, fmt.Errorf("page %d: %w", i, err)
		}
		logger.Debug("wrote lightmap page",
			zap.String("path", path),
			zap.Int("faces", p.Faces))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeWebP(path string, p *lightmap.Page) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeWebP(f, p.Pixels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// encodeWebP writes img losslessly.
func encodeWebP(w io.Writer, img image.Image) error {
	return nativewebp.Encode(w, img, nil)
}
