// Package settings holds the filter's generic settings object and its
// on-disk persistence.
package settings

import (
	"encoding/json"
	"maps"
	"math"
	"reflect"
	"strconv"
)

// Well-known setting keys.
const (
	KeyServer            = "server"
	KeyKey               = "key"
	KeyUseAuth           = "use_auth"
	KeyUsername          = "username"
	KeyPassword          = "password"
	KeyCustomAudioSource = "custom_audio_source"
	KeyAudioSource       = "audio_source"
	KeyVideoEncoder      = "video_encoder"
	KeyAudioEncoder      = "audio_encoder"
	KeyAudioBitrate      = "audio_bitrate"
	KeyBitrate           = "bitrate"
)

// Data is a generic settings object as exchanged with the host.
// Values follow encoding/json decoding rules (numbers may be float64).
type Data map[string]any

// New returns an empty settings object.
func New() Data {
	return make(Data)
}

// FromJSON decodes a JSON object into Data.
func FromJSON(b []byte) (Data, error) {
	d := New()
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// JSON encodes d as a JSON object. A nil Data encodes as "{}".
func (d Data) JSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// IsEmpty reports whether d carries no keys.
func (d Data) IsEmpty() bool {
	return len(d) == 0
}

// String returns the string value for key, or "" when missing or not a string.
func (d Data) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the boolean value for key, or false.
func (d Data) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Int returns the integer value for key, or 0.
func (d Data) Int(key string) int64 {
	switch v := d[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Set stores value under key.
func (d Data) Set(key string, value any) {
	d[key] = value
}

// Erase removes key.
func (d Data) Erase(key string) {
	delete(d, key)
}

// Apply copies every key from other into d, overwriting existing values.
func (d Data) Apply(other Data) {
	maps.Copy(d, other)
}

// Clone returns a shallow copy of d.
func (d Data) Clone() Data {
	c := make(Data, len(d))
	maps.Copy(c, d)
	return c
}

// Equal reports whether d and other hold the same values.
func (d Data) Equal(other Data) bool {
	if len(d) != len(other) {
		return false
	}
	return reflect.DeepEqual(map[string]any(d), map[string]any(other))
}

// Redacted stands in for secret values shown to users.
const Redacted = "********"

var secretKeys = []string{KeyKey, KeyPassword}

// Redact returns a copy of d with non-empty secrets replaced by Redacted.
func (d Data) Redact() Data {
	out := d.Clone()
	for _, k := range secretKeys {
		if out.String(k) != "" {
			out[k] = Redacted
		}
	}
	return out
}

// RestoreSecrets replaces secrets that were echoed back in redacted form
// with their values from current. A redacted secret with no current value
// is removed.
func (d Data) RestoreSecrets(current Data) {
	for _, k := range secretKeys {
		if d.String(k) != Redacted {
			continue
		}
		if v, ok := current[k]; ok {
			d[k] = v
		} else {
			d.Erase(k)
		}
	}
}
