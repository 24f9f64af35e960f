package calls

import (
	"fmt"
	"strconv"
	"strings"
)

// CallLogTag prefixes chat messages that render as call-summary bubbles.
const CallLogTag = "[CALL_LOG]"

// CallLog is the decoded form of a call-log chat message.
type CallLog struct {
	CallType        CallType
	Missed          bool
	DurationSeconds int
}

// FormatDuration renders whole seconds as mm:ss. Minutes are not wrapped into
// hours so that call logs stay parseable.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatCallLog builds the chat content for an ended call.
// Any status other than completed is logged as missed.
func FormatCallLog(voiceOnly bool, status Status, durationSeconds int) string {
	kind := "VIDEO"
	if voiceOnly {
		kind = "VOICE"
	}
	if status != StatusCompleted {
		return CallLogTag + " MISSED_" + kind
	}
	return CallLogTag + " " + kind + " " + FormatDuration(durationSeconds)
}

// ParseCallLog decodes a call-log message. ok is false for plain chat text.
func ParseCallLog(content string) (CallLog, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(content), CallLogTag)
	if !found {
		return CallLog{}, false
	}
	fields := strings.Fields(rest)
	switch {
	case len(fields) == 1 && fields[0] == "MISSED_VOICE":
		return CallLog{CallType: CallTypeVoice, Missed: true}, true
	case len(fields) == 1 && fields[0] == "MISSED_VIDEO":
		return CallLog{CallType: CallTypeVideo, Missed: true}, true
	case len(fields) == 2 && (fields[0] == "VOICE" || fields[0] == "VIDEO"):
		secs, ok := parseDuration(fields[1])
		if !ok {
			return CallLog{}, false
		}
		t := CallTypeVideo
		if fields[0] == "VOICE" {
			t = CallTypeVoice
		}
		return CallLog{CallType: t, DurationSeconds: secs}, true
	default:
		return CallLog{}, false
	}
}

func parseDuration(s string) (int, bool) {
	mm, ss, found := strings.Cut(s, ":")
	if !found {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 {
		return 0, false
	}
	sec, err := strconv.Atoi(ss)
	if err != nil || sec < 0 || sec > 59 {
		return 0, false
	}
	return m*60 + sec, true
}
