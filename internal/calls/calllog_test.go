package calls

import "testing"

func TestFormatCallLog(t *testing.T) {
	tests := []struct {
		name      string
		voiceOnly bool
		status    Status
		duration  int
		want      string
	}{
		{"completed voice", true, StatusCompleted, 125, "[CALL_LOG] VOICE 02:05"},
		{"completed video", false, StatusCompleted, 95, "[CALL_LOG] VIDEO 01:35"},
		{"missed voice", true, StatusMissed, 0, "[CALL_LOG] MISSED_VOICE"},
		{"missed video", false, StatusMissed, 40, "[CALL_LOG] MISSED_VIDEO"},
		{"long call keeps minutes", true, StatusCompleted, 3725, "[CALL_LOG] VOICE 62:05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCallLog(tt.voiceOnly, tt.status, tt.duration); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCallLog(t *testing.T) {
	log, ok := ParseCallLog("[CALL_LOG] VIDEO 01:35")
	if !ok {
		t.Fatalf("expected call log")
	}
	if log.CallType != CallTypeVideo || log.Missed || log.DurationSeconds != 95 {
		t.Fatalf("unexpected log: %+v", log)
	}

	log, ok = ParseCallLog("[CALL_LOG] MISSED_VOICE")
	if !ok || !log.Missed || log.CallType != CallTypeVoice {
		t.Fatalf("unexpected missed log: %+v ok=%v", log, ok)
	}

	for _, plain := range []string{"hello", "[CALL_LOG] VOICE", "[CALL_LOG] VOICE 1:99", "[CALL_LOG] AUDIO 01:00"} {
		if _, ok := ParseCallLog(plain); ok {
			t.Fatalf("expected %q not to parse", plain)
		}
	}
}
