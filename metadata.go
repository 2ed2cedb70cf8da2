package imagetruth

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/bep/imagemeta"
)

// MetadataMap maps a capture-attribute name (EXIF tag name) to its value.
// A nil or empty map means "no evidence".
type MetadataMap map[string]any

// Capture-attribute groups. Any one present key sets the matching indicator.
var (
	CameraIdentityKeys  = []string{"Make", "Model", "LensMake", "LensModel"}
	GPSKeys             = []string{"GPSLatitude", "GPSLongitude", "GPSAltitude"}
	TimestampKeys       = []string{"DateTimeOriginal", "DateTime", "DateTimeDigitized"}
	OrientationKeys     = []string{"Orientation"}
	SoftwareKeys        = []string{"Software", "ProcessingSoftware"}
	CaptureSettingsKeys = []string{"ISOSpeedRatings", "FNumber", "ExposureTime", "FocalLength", "WhiteBalance", "Flash"}
)

// CaptureKeys is every metadata key the scorer looks at.
var CaptureKeys = func() map[string]bool {
	keys := make(map[string]bool)
	for _, group := range [][]string{
		CameraIdentityKeys, GPSKeys, TimestampKeys, OrientationKeys, SoftwareKeys, CaptureSettingsKeys,
	} {
		for _, k := range group {
			keys[k] = true
		}
	}
	return keys
}()

// exifTagAliases maps the tag names the EXIF decoder reports (exiftool
// naming) to the capture keys they carry.
var exifTagAliases = map[string]string{
	"ISO":        "ISOSpeedRatings",   // 0x8827
	"ModifyDate": "DateTime",          // 0x0132
	"CreateDate": "DateTimeDigitized", // 0x9004
}

// captureKey resolves a decoded tag name to its capture key.
func captureKey(tag string) (string, bool) {
	if key, ok := exifTagAliases[tag]; ok {
		return key, true
	}
	return tag, CaptureKeys[tag]
}

// HasAny reports whether any of keys holds a present value.
func (m MetadataMap) HasAny(keys ...string) bool {
	for _, k := range keys {
		if present(m[k]) {
			return true
		}
	}
	return false
}

// String returns the value under key formatted as text, or "" when absent.
func (m MetadataMap) String(key string) string {
	v, ok := m[key]
	if !ok || !present(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

// present reports whether v carries evidence. nil, "", false, numeric zero,
// NaN, the zero time and empty collections are absent.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case time.Time:
		return !val.IsZero()
	case float64:
		return val != 0 && !math.IsNaN(val)
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

// ExtractCaptureMetadata parses EXIF capture attributes from raw image bytes.
// Only the keys in CaptureKeys are kept; decoder aliases such as ISO and
// ModifyDate are stored under their capture key.
// Returns nil if the data is nil, empty, in an unsupported format, or carries
// no capture metadata. Graceful degradation: never returns an error.
func ExtractCaptureMetadata(data []byte) MetadataMap {
	if len(data) == 0 {
		return nil
	}
	format, ok := sniffImageFormat(data)
	if !ok {
		return nil
	}

	meta := make(MetadataMap)
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			_, ok := captureKey(ti.Tag)
			return ti.Source == imagemeta.EXIF && ok
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			key, _ := captureKey(ti.Tag)
			if present(ti.Value) {
				meta[key] = ti.Value
			}
			return nil
		},
	})
	if err != nil || len(meta) == 0 {
		return nil
	}
	return meta
}

// sniffImageFormat maps magic bytes to an imagemeta format.
func sniffImageFormat(data []byte) (imagemeta.ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return imagemeta.JPEG, true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return imagemeta.PNG, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return imagemeta.WebP, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return imagemeta.TIFF, true
	default:
		var unknown imagemeta.ImageFormat
		return unknown, false
	}
}
