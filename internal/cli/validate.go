package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sdejongh/toolbelt/internal/platform"
	"github.com/sdejongh/toolbelt/pkg/output"
)

// validateDedupArgs resolves both directories and checks that they exist,
// differ and that the new one does not sit inside the old one
func validateDedupArgs(oldArg, newArg string) (string, string, error) {
	oldDir, err := platform.ResolveDir(oldArg)
	if err != nil {
		return "", "", fmt.Errorf("old directory: %w", err)
	}

	newDir, err := platform.ResolveDir(newArg)
	if err != nil {
		return "", "", fmt.Errorf("new directory: %w", err)
	}

	if err := platform.CheckSeparate(oldDir, newDir); err != nil {
		return "", "", err
	}

	if !slices.Contains(output.ReportFormats, dedupFlags.ReportFormat) {
		return "", "", fmt.Errorf("invalid report format: %s (valid: %s)",
			dedupFlags.ReportFormat, strings.Join(output.ReportFormats, ", "))
	}

	return oldDir, newDir, nil
}
