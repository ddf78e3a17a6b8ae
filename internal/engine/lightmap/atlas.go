package lightmap

import (
	"github.com/Faultbox/srcview/internal/logger"
	"go.uber.org/zap"
)

// Atlas is the ordered list of pages built while partitioning a map.
// Only the last page accepts new faces.
type Atlas struct {
	PageSize int
	Pages    []*Page
}

// NewAtlas returns an atlas with one open page.
func NewAtlas(pageSize int) *Atlas {
	if pageSize <= whiteBlock {
		pageSize = DefaultPageSize
	}
	return &Atlas{PageSize: pageSize, Pages: []*Page{NewPage(pageSize)}}
}

// Current returns the index of the open page.
func (a *Atlas) Current() int {
	return len(a.Pages) - 1
}

// Add packs a face into the open page. ok is false when the page is full;
// the caller then calls Next and retries.
func (a *Atlas) Add(f Face) (Placement, bool) {
	return a.Pages[a.Current()].Add(f)
}

// White returns the white placement of the open page.
func (a *Atlas) White() Placement {
	return a.Pages[a.Current()].White()
}

// Next finalizes the open page and opens a new one.
func (a *Atlas) Next() int {
	cur := a.Pages[a.Current()]
	cur.Finalize()
	logger.Debug("lightmap page full",
		zap.Int("page", a.Current()),
		zap.Int("faces", cur.Faces))
	a.Pages = append(a.Pages, NewPage(a.PageSize))
	return a.Current()
}

// Finish finalizes the open page.
func (a *Atlas) Finish() {
	a.Pages[a.Current()].Finalize()
}

// Fits reports whether a face could fit on an empty page at all.
func (a *Atlas) Fits(f Face) bool {
	return f.Width+2 <= a.PageSize && f.Height+2 <= a.PageSize-whiteBlock
}
