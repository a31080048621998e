// Package helpdata embeds the per-ecosystem help text printed by
// "polydeps help <ecosystem>".
package helpdata

import (
	"embed"
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
)

//go:embed help/*.txt
var HelpFS embed.FS

// Text returns the help text for eco.
func Text(eco detect.Ecosystem) (string, error) {
	data, err := HelpFS.ReadFile("help/" + string(eco) + ".txt")
	if err != nil {
		return "", fmt.Errorf("no help for ecosystem %q", eco)
	}
	return string(data), nil
}
