// Package bodyparse decodes .eml messages and locates the most recent
// message inside a body that may contain quoted replies.
package bodyparse

import (
	"sort"
	"strings"

	"mailparser_server/core/domain"
)

// Strategy selects which clusters Parse returns.
type Strategy string

const (
	// BottomUp walks from the end of the body up to the nearest quoted
	// header block.
	BottomUp Strategy = "bottom-up"
	// TopDown returns every cluster.
	TopDown Strategy = "top-down"
)

// DefaultMaxGap is the largest compact-line distance within one cluster.
const DefaultMaxGap = 1

// Result is the structure found in an email body.
type Result struct {
	Strategy   Strategy           `json:"strategy"`
	Clusters   []Cluster          `json:"clusters"`
	Segments   []HeaderSegment    `json:"segments,omitempty"`
	BodyWindow *domain.BodyWindow `json:"body_window,omitempty"`
}

// Parse finds contact clusters and quoted header segments in body. HTML
// bodies are reduced to visible text first.
func Parse(body string, maxGap int, strategy Strategy) *Result {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	body = VisibleText(body)
	lines := splitLines(body)

	segments := ParseHeaderSegments(lines)
	clusters := ClusterCandidates(FindCandidates(lines), maxGap)
	for _, seg := range segments {
		clusters = append(clusters, headerCluster(seg))
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].StartLine < clusters[j].StartLine })

	if strategy == TopDown {
		return &Result{Strategy: TopDown, Clusters: clusters, Segments: segments}
	}

	// Walk up until the first header cluster, which is the cut.
	var selected []Cluster
	cutLine := 0
	for i := len(clusters) - 1; i >= 0; i-- {
		selected = append(selected, clusters[i])
		if clusters[i].Header {
			cutLine = clusters[i].StartLine
			break
		}
	}
	for l, r := 0, len(selected)-1; l < r; l, r = l+1, r-1 {
		selected[l], selected[r] = selected[r], selected[l]
	}

	return &Result{
		Strategy:   BottomUp,
		Clusters:   selected,
		Segments:   segments,
		BodyWindow: bodyWindow(lines, cutLine),
	}
}

// BodyWindow returns the text from the last quoted header block to the
// end of body.
func BodyWindow(body string) *domain.BodyWindow {
	return Parse(body, DefaultMaxGap, BottomUp).BodyWindow
}

func bodyWindow(lines []string, cutLine int) *domain.BodyWindow {
	start := 0
	if cutLine > 0 {
		start = cutLine - 1
	}
	first, last := -1, -1
	for k := start; k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) != "" {
			if first < 0 {
				first = k
			}
			last = k
		}
	}
	if first < 0 {
		return &domain.BodyWindow{}
	}
	return &domain.BodyWindow{
		StartLine: first + 1,
		EndLine:   len(lines),
		Text:      strings.Join(lines[first:last+1], "\n"),
	}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
