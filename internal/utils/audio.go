package utils

import (
	"encoding/base64"
	"strings"
)

// DecodeAudioBase64 accepts plain base64 or a data URL
// (data:audio/wav;base64,...).
func DecodeAudioBase64(v string) ([]byte, error) {
	raw := strings.TrimSpace(v)
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	return base64.StdEncoding.DecodeString(raw)
}
