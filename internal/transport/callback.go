package transport

import (
	"fmt"
	"strings"
)

// Callback data rides inside a 64-byte transport limit, so the codec keeps
// payloads compact: "s|<job>|<format>" for selections, "c|<job>" for
// cancel taps.
const (
	callbackSelect = "s"
	callbackCancel = "c"
)

// EncodeSelection encodes a format choice for callback data.
func EncodeSelection(jobID, formatID string) string {
	return callbackSelect + "|" + jobID + "|" + formatID
}

// EncodeCancel encodes a cancel request for callback data.
func EncodeCancel(jobID string) string {
	return callbackCancel + "|" + jobID
}

// DecodeCallback parses callback data. The boolean distinguishes a cancel
// tap (true) from a selection.
func DecodeCallback(data string) (sel Selection, cancel bool, err error) {
	parts := strings.Split(data, "|")
	switch {
	case len(parts) == 2 && parts[0] == callbackCancel:
		if parts[1] == "" {
			return Selection{}, false, fmt.Errorf("decode callback: empty job id")
		}
		return Selection{JobID: parts[1]}, true, nil
	case len(parts) == 3 && parts[0] == callbackSelect:
		if parts[1] == "" || parts[2] == "" {
			return Selection{}, false, fmt.Errorf("decode callback: empty field in %q", data)
		}
		return Selection{JobID: parts[1], FormatID: parts[2]}, false, nil
	default:
		return Selection{}, false, fmt.Errorf("decode callback: unrecognized payload %q", data)
	}
}
