package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/couchcryptid/clima-scope/internal/mapstore"
)

// Local writes a plain-text rendition of the report to the output
// directory. It is the fallback when no rendering service is configured;
// the pipeline treats its output like any other rendered document.
type Local struct {
	outputDir string
	logger    *slog.Logger
}

// NewLocal creates the output directory if needed and returns the renderer.
func NewLocal(outputDir string, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report output directory: %w", err)
	}
	return &Local{outputDir: outputDir, logger: logger}, nil
}

// Render writes the document and returns its location and size.
func (l *Local) Render(_ context.Context, req domain.RenderRequest) (domain.RenderResult, error) {
	name := fmt.Sprintf("%s_weekly_report_%s_%s.txt", req.CountyID, req.PeriodStart, req.PeriodEnd)
	dest := filepath.Join(l.outputDir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "WEEKLY WEATHER REPORT\n")
	fmt.Fprintf(&b, "County: %s (%s)\n", req.CountyName, req.CountyID)
	fmt.Fprintf(&b, "Period: %s to %s\n\n", req.PeriodStart, req.PeriodEnd)
	fmt.Fprintf(&b, "%s\n", req.Narratives.Overview)

	sections := make([]string, 0, len(req.Narratives.Sections))
	for section := range req.Narratives.Sections {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		fmt.Fprintf(&b, "\n%s\n%s\n", strings.ToUpper(section), req.Narratives.Sections[section])
	}

	b.WriteString("\nMAPS\n")
	for _, v := range mapstore.Variables {
		if req.MapsAvailable[string(v)] {
			fmt.Fprintf(&b, "%s: %s\n", v, req.MapPaths[string(v)])
		} else {
			fmt.Fprintf(&b, "%s: map not available for this period\n", v)
		}
	}

	content := []byte(b.String())
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return domain.RenderResult{}, fmt.Errorf("write report document: %w", err)
	}

	l.logger.Info("report rendered locally", "file_path", dest, "size_bytes", len(content))
	return domain.RenderResult{FilePath: dest, SizeBytes: int64(len(content))}, nil
}
