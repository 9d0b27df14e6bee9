package playlist

import "strings"

// Segment is one entry of a SegmentPlan (spec.md §3): zero-based dense
// index plus the resolved absolute URI.
type Segment struct {
	Index int
	URI   string
}

// PlanSegments walks a MEDIA document's lines pairing each #EXTINF tag
// with the URI line that immediately follows it, in appearance order
// (spec.md §4.4). #EXT-X-ENDLIST stops planning; its absence is not an
// error — EOF is treated as end-of-list.
func PlanSegments(lines []string, baseURI string) []Segment {
	var segments []Segment
	index := 0
	expectingURI := false

	for _, line := range lines {
		if strings.HasPrefix(line, tagEndlist) {
			break
		}
		if strings.HasPrefix(line, tagExtInf) {
			expectingURI = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if expectingURI {
			segments = append(segments, Segment{
				Index: index,
				URI:   Resolve(baseURI, line),
			})
			index++
			expectingURI = false
		}
	}

	return segments
}
