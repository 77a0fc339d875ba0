package codec

import (
	"encoding/json"
	"strings"
)

// Format names returned by DetectFormat.
const (
	FormatContainer = "container"
	FormatCSV       = "csv"
	FormatUnknown   = "unknown"
)

// DetectFormat guesses what an import payload is: the encrypted container's
// outer JSON shape is tried first, then the first line is checked for a
// plausible CSV credential header.
func DetectFormat(data []byte) string {
	var probe struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Format == ContainerFormatTag {
		return FormatContainer
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	firstLine, _, _ := strings.Cut(text, "\n")
	if looksLikeCSVHeader(firstLine) {
		return FormatCSV
	}
	return FormatUnknown
}

func looksLikeCSVHeader(line string) bool {
	if !strings.Contains(line, ",") {
		return false
	}
	cols := matchHeader(strings.Split(strings.TrimSuffix(line, "\r"), ","))
	return cols["url"] >= 0 || cols["username"] >= 0 || cols["password"] >= 0
}
