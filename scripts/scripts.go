// Package scripts embeds the built-in Risor report scripts.
package scripts

import (
	"embed"
	"strings"
)

// FS holds reports/<name>.risor for every built-in report.
//
//go:embed reports/*.risor
var FS embed.FS

// Reports lists the built-in report names.
func Reports() []string {
	entries, err := FS.ReadDir("reports")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".risor"))
	}
	return names
}
