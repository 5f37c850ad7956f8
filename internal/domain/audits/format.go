package audits

import (
	"regexp"
	"strings"
	"time"
)

// Canonical section titles for detailed mode. These match the three numbered
// headings the completion prompt asks for.
const (
	SectionSecurity = "Security Vulnerabilities"
	SectionGas      = "Gas Optimization Opportunities"
	SectionQuality  = "Code Quality Improvements"
	SectionGeneral  = "General Findings"
	SectionSimple   = "Simplified Explanation"
	SectionOverview = "Overview"
)

// Marker lines tolerate "## Security Vulnerabilities", "1. **Security
// Vulnerabilities**" and similar variants the model actually emits.
var sectionMarker = regexp.MustCompile(`(?i)^\s{0,3}(?:#{1,6}\s*)?(?:\*\*)?\s*(?:\d+[.)]\s*)?(?:\*\*)?\s*(security vulnerabilit|gas optimization|code quality)`)

// FormatReport turns a raw completion into a Report. The raw text is kept
// verbatim as Body; Sections carry the labeled split for detailed mode or a
// single narrative block for beginner mode. Unrecognized output is never
// dropped — it lands in one general section.
func FormatReport(raw string, src *ContractSource, mode Mode, id ReportID, tenant string, now time.Time) (*Report, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrFormatting
	}

	var sections []Section
	if mode == ModeBeginner {
		sections = []Section{{Title: SectionSimple, Body: raw}}
	} else {
		sections = splitDetailed(raw)
	}

	return &Report{
		ID:           id,
		TenantID:     tenant,
		ContractName: src.Name,
		CodeHash:     src.Hash,
		Mode:         mode,
		Title:        InferTitle(raw),
		Sections:     sections,
		Body:         raw,
		CreatedAt:    now,
	}, nil
}

// splitDetailed partitions the completion on the three known headings.
// No recognizable marker → whole text becomes one general section.
func splitDetailed(raw string) []Section {
	lines := strings.Split(raw, "\n")

	var sections []Section
	var current *Section
	var preamble []string

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(current.Body)
			sections = append(sections, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := sectionMarker.FindStringSubmatch(line); m != nil {
			flush()
			current = &Section{Title: canonicalTitle(m[1])}
			continue
		}
		if current == nil {
			preamble = append(preamble, line)
			continue
		}
		current.Body += line + "\n"
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Title: SectionGeneral, Body: raw}}
	}

	// Intro text before the first heading stays visible as its own block.
	if intro := strings.TrimSpace(strings.Join(preamble, "\n")); intro != "" {
		sections = append([]Section{{Title: SectionOverview, Body: intro}}, sections...)
	}
	return sections
}

func canonicalTitle(marker string) string {
	switch {
	case strings.HasPrefix(strings.ToLower(marker), "security"):
		return SectionSecurity
	case strings.HasPrefix(strings.ToLower(marker), "gas"):
		return SectionGas
	default:
		return SectionQuality
	}
}

// InferTitle derives a short display title from the first non-empty line,
// capped at 60 characters. Truncation counts runes so a multibyte title
// never ends mid-sequence.
func InferTitle(report string) string {
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "#* "))
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 60 {
			return string(runes[:60])
		}
		return line
	}
	return "Audit"
}
