package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/clima-scope/internal/domain"
)

// TemplateGenerator produces narratives from fixed templates. It is the
// fallback when no narrative service is configured, and is deterministic:
// the same report always yields the same prose.
type TemplateGenerator struct{}

// NewTemplateGenerator returns the template-based generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate builds an overview plus one section per reported variable.
func (g *TemplateGenerator) Generate(_ context.Context, report domain.RawReport) (domain.NarrativeSet, error) {
	county := report.CountyName()
	if county == "" {
		county = "the county"
	}
	start, end := report.Period()

	vars := report.Variables()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make(map[string]string, len(names))
	for _, name := range names {
		values, _ := vars[name].(map[string]any)
		sections[name] = sectionFor(county, name, values)
	}

	overview := fmt.Sprintf(
		"Weekly weather report for %s covering %s to %s. Observations were recorded for %s.",
		county, start, end, humanList(names))

	return domain.NarrativeSet{Overview: overview, Sections: sections}, nil
}

func sectionFor(county, variable string, values map[string]any) string {
	switch variable {
	case "rainfall":
		if mm, ok := number(values, "total_mm"); ok {
			return fmt.Sprintf("%s received a total of %.1f mm of rainfall over the week.", county, mm)
		}
	case "temperature":
		maxC, okMax := number(values, "max_c")
		minC, okMin := number(values, "min_c")
		if okMax && okMin {
			return fmt.Sprintf("Temperatures in %s ranged from %.1f°C to %.1f°C.", county, minC, maxC)
		}
	case "wind":
		if kmh, ok := number(values, "avg_kmh"); ok {
			return fmt.Sprintf("Average wind speeds in %s were %.1f km/h.", county, kmh)
		}
	}
	return fmt.Sprintf("Observations for %s were recorded in %s this week.", variable, county)
}

func number(values map[string]any, key string) (float64, bool) {
	v, ok := values[key].(float64)
	return v, ok
}

func humanList(items []string) string {
	switch len(items) {
	case 0:
		return "no variables"
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
