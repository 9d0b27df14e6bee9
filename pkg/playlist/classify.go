package playlist

import "strings"

const (
	tagM3U        = "#EXTM3U"
	tagStreamInf  = "#EXT-X-STREAM-INF"
	tagExtInf     = "#EXTINF"
	tagEndlist    = "#EXT-X-ENDLIST"
	tagMedia      = "#EXT-X-MEDIA"
	tagKey        = "#EXT-X-KEY"
)

// Classify labels a document MASTER iff any line starts with
// #EXT-X-STREAM-INF, MEDIA iff it has an #EXTINF line and no
// #EXT-X-STREAM-INF line, UNKNOWN otherwise — spec.md §4.2, verbatim.
// Classifying the same lines twice always returns the same Kind
// (spec.md §8 invariant 2): the function is a pure scan with no shared
// state.
func Classify(lines []string) Kind {
	hasStreamInf := false
	hasExtInf := false
	for _, line := range lines {
		if strings.HasPrefix(line, tagStreamInf) {
			hasStreamInf = true
		}
		if strings.HasPrefix(line, tagExtInf) {
			hasExtInf = true
		}
	}
	switch {
	case hasStreamInf:
		return Master
	case hasExtInf:
		return Media
	default:
		return Unknown
	}
}

// HasM3UHeader reports whether the first line is #EXTM3U — its absence
// is permitted but logged when debug is on (spec.md §4.2).
func HasM3UHeader(lines []string) bool {
	return len(lines) > 0 && strings.HasPrefix(lines[0], tagM3U)
}

// HasEncryptionTag reports whether the document references
// #EXT-X-KEY anywhere. Encryption is unsupported: spec.md §6 requires
// this to surface as ENCRYPTED_UNSUPPORTED before any segment work.
func HasEncryptionTag(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, tagKey) {
			return true
		}
	}
	return false
}
