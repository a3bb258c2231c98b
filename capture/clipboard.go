// ABOUTME: Copies an interaction summary to the system clipboard
// ABOUTME: Missing clipboard utilities surface as ErrUnsupported rather than a crash
package capture

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/harperreed/touchpoint/models"
)

type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes through xclip/xsel/pbcopy/clip.exe.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// CopySummary puts a plain-text summary of in on the clipboard and returns it.
func CopySummary(cb Clipboard, in models.Interaction) (string, error) {
	text := in.Summary()
	if err := cb.WriteAll(text); err != nil {
		return "", err
	}
	return text, nil
}
