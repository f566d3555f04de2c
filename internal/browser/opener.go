package browser

import (
	"io"
	"os"

	pkgbrowser "github.com/pkg/browser"
)

// SystemOpener opens URLs with the platform's default browser.
type SystemOpener struct{}

// NewSystemOpener routes the helper process output to w so it never mixes
// with protocol frames on stdout.
func NewSystemOpener(w io.Writer) *SystemOpener {
	if w == nil {
		w = os.Stderr
	}
	pkgbrowser.Stdout = w
	pkgbrowser.Stderr = w
	return &SystemOpener{}
}

func (SystemOpener) Open(url string) error {
	return pkgbrowser.OpenURL(url)
}
