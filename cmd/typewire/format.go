package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSessionsText formats sessions as aligned columns.
func formatSessionsText(w io.Writer, sessions []CLISession) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tMODE\tSTARTED\tENDED\tROOT")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.UUID, s.Mode, s.StartedAt.Format(time.RFC3339), endedText(s.EndedAt), s.ProjectRoot)
	}
	tw.Flush()
}

// formatShowText formats one session's files and types as readable text.
func formatShowText(w io.Writer, show CLIShow) {
	s := show.Session
	fmt.Fprintf(w, "Session: %s (%s)\n", s.UUID, s.Mode)
	fmt.Fprintf(w, "Root: %s\n", s.ProjectRoot)
	fmt.Fprintf(w, "Started: %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Ended: %s\n", endedText(s.EndedAt))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Files (%d):\n", len(show.Files))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PATH\tMODULE\tNODES")
	for _, f := range show.Files {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", f.Path, f.Module, f.Nodes)
	}
	tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Types (%d):\n", len(show.Types))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tKIND\tDISPLAY")
	for _, t := range show.Types {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", t.ID, t.Kind, t.Display)
	}
	tw.Flush()
}

func endedText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
