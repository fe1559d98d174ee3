package encoding

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	hdr "github.com/grafana/hdrhistogram"
)

// LogFormatVersion is written into the `#[Histogram log format version]`
// header line this package emits.
const LogFormatVersion = "1.2"

// FormatHeader returns the two recognized interval-log header lines: the
// format-version marker and the log's start time (§6).
func FormatHeader(startTimeSeconds float64) []string {
	return []string{
		fmt.Sprintf("#[Histogram log format version %s]", LogFormatVersion),
		fmt.Sprintf("#[StartTime: %s]", formatSecondsMillis(startTimeSeconds)),
	}
}

// FormatInterval renders one interval-log data line: begin/end/interval-max
// timestamps followed by the base64 of h's compressed wire encoding (§6).
func FormatInterval(beginSeconds, endSeconds, intervalMaxSeconds float64, h *hdr.Histogram) (string, error) {
	encoded, err := EncodeCompressed(h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s,%s,%s,%s",
		formatSecondsMillis(beginSeconds),
		formatSecondsMillis(endSeconds),
		formatSecondsMillis(intervalMaxSeconds),
		base64.StdEncoding.EncodeToString(encoded),
	), nil
}

// ParseInterval parses one interval-log data line, decoding the embedded
// histogram into target if non-nil (the same in-place-vs-fresh contract as
// Decode).
func ParseInterval(line string, target *hdr.Histogram) (begin, end, intervalMax float64, h *hdr.Histogram, err error) {
	fields := strings.SplitN(line, ",", 4)
	if len(fields) != 4 {
		return 0, 0, 0, nil, hdr.NewError(hdr.Malformed, "interval-log line does not have four fields")
	}

	if begin, err = parseSecondsMillis(fields[0]); err != nil {
		return 0, 0, 0, nil, err
	}
	if end, err = parseSecondsMillis(fields[1]); err != nil {
		return 0, 0, 0, nil, err
	}
	if intervalMax, err = parseSecondsMillis(fields[2]); err != nil {
		return 0, 0, 0, nil, err
	}

	raw, decErr := base64.StdEncoding.DecodeString(fields[3])
	if decErr != nil {
		return 0, 0, 0, nil, hdr.WrapError(hdr.Malformed, "decoding base64 histogram field", decErr)
	}
	h, err = Decode(raw, target)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	return begin, end, intervalMax, h, nil
}

// IsHeaderLine reports whether line is a recognized `#`-prefixed header
// line rather than interval data (§6).
func IsHeaderLine(line string) bool { return strings.HasPrefix(line, "#") }

func formatSecondsMillis(seconds float64) string {
	whole := int64(seconds)
	millis := int64((seconds-float64(whole))*1000 + 0.5)
	return fmt.Sprintf("%d.%03d", whole, millis)
}

func parseSecondsMillis(s string) (float64, error) {
	parts := strings.SplitN(s, ".", 2)
	whole, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, hdr.WrapError(hdr.Malformed, "parsing seconds component", err)
	}
	var millis int64
	if len(parts) == 2 {
		if millis, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return 0, hdr.WrapError(hdr.Malformed, "parsing milliseconds component", err)
		}
	}
	return float64(whole) + float64(millis)/1000, nil
}
