package imagetruth

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestPresent(t *testing.T) {
	t.Parallel()

	var nilPtr *int
	one := 1

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"blank string", "  \t", false},
		{"string", "Canon", true},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"int", 1, true},
		{"zero uint16", uint16(0), false},
		{"uint16", uint16(6), true},
		{"zero float", 0.0, false},
		{"negative float", -12.5, true},
		{"NaN", math.NaN(), false},
		{"zero float32", float32(0), false},
		{"zero time", time.Time{}, false},
		{"time", time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"empty slice", []float64{}, false},
		{"rational slice", []int{1, 250}, true},
		{"empty map", map[string]any{}, false},
		{"nil pointer", nilPtr, false},
		{"pointer", &one, true},
		{"struct", struct{ A int }{}, true},
	}

	for _, tc := range tests {
		if got := present(tc.v); got != tc.want {
			t.Errorf("present(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMetadataMap_HasAnyAndString(t *testing.T) {
	t.Parallel()

	m := MetadataMap{
		"Make":        "  Canon ",
		"Model":       "",
		"Orientation": uint16(1),
		"GPSLatitude": 0.0,
	}

	if !m.HasAny("Model", "Make") {
		t.Error("HasAny(Model, Make) = false, want true")
	}
	if m.HasAny("Model", "GPSLatitude", "Missing") {
		t.Error("HasAny on absent values = true, want false")
	}
	if m.HasAny() {
		t.Error("HasAny() with no keys = true, want false")
	}

	tests := []struct {
		key, want string
	}{
		{"Make", "Canon"},
		{"Model", ""},
		{"Orientation", "1"},
		{"GPSLatitude", ""},
		{"Missing", ""},
	}
	for _, tc := range tests {
		if got := m.String(tc.key); got != tc.want {
			t.Errorf("String(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}

	var empty MetadataMap
	if empty.HasAny(CameraIdentityKeys...) || empty.String("Make") != "" {
		t.Error("nil MetadataMap must behave as empty")
	}
}

func TestCaptureKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"Make", "GPSAltitude", "DateTimeDigitized", "Orientation", "ProcessingSoftware", "Flash"} {
		if !CaptureKeys[k] {
			t.Errorf("CaptureKeys[%q] = false, want true", k)
		}
	}
	if CaptureKeys["Copyright"] {
		t.Error("CaptureKeys[Copyright] = true, want false")
	}
}

func TestExtractCaptureMetadata_NoEvidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil data", data: nil},
		{name: "empty data", data: []byte{}},
		{name: "garbage data", data: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33}},
		{name: "truncated jpeg", data: []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00}},
		{name: "png without exif", data: encodeTestPNG(t, 8, 8)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractCaptureMetadata(tc.data); got != nil {
				t.Errorf("ExtractCaptureMetadata() = %+v, want nil", got)
			}
		})
	}
}

// exifEntry is one IFD entry: ASCII when ascii is set, otherwise a SHORT.
type exifEntry struct {
	tag   uint16
	ascii string
	short uint16
}

// exifJPEG returns a small JPEG whose APP1 segment holds a little-endian TIFF
// with ifd0 in IFD0 and exif in the Exif sub-IFD.
func exifJPEG(t *testing.T, ifd0, exif []exifEntry) []byte {
	t.Helper()
	le := binary.LittleEndian

	ifd0Count := len(ifd0)
	if len(exif) > 0 {
		ifd0Count++
	}
	exifStart := 8 + 2 + 12*ifd0Count + 4
	dataStart := exifStart
	if len(exif) > 0 {
		dataStart += 2 + 12*len(exif) + 4
	}

	var data []byte
	writeIFD := func(out []byte, entries []exifEntry, count int, subIFD uint32) []byte {
		out = le.AppendUint16(out, uint16(count))
		for _, e := range entries {
			out = le.AppendUint16(out, e.tag)
			if e.ascii != "" {
				val := append([]byte(e.ascii), 0)
				out = le.AppendUint16(out, 2)
				out = le.AppendUint32(out, uint32(len(val)))
				if len(val) <= 4 {
					out = append(out, val...)
					out = append(out, make([]byte, 4-len(val))...)
				} else {
					out = le.AppendUint32(out, uint32(dataStart+len(data)))
					data = append(data, val...)
				}
				continue
			}
			out = le.AppendUint16(out, 3)
			out = le.AppendUint32(out, 1)
			out = le.AppendUint16(out, e.short)
			out = le.AppendUint16(out, 0)
		}
		if subIFD != 0 {
			out = le.AppendUint16(out, 0x8769)
			out = le.AppendUint16(out, 4)
			out = le.AppendUint32(out, 1)
			out = le.AppendUint32(out, subIFD)
		}
		return le.AppendUint32(out, 0)
	}

	tiff := le.AppendUint16([]byte("II"), 42)
	tiff = le.AppendUint32(tiff, 8)
	if len(exif) > 0 {
		tiff = writeIFD(tiff, ifd0, ifd0Count, uint32(exifStart))
		tiff = writeIFD(tiff, exif, len(exif), 0)
	} else {
		tiff = writeIFD(tiff, ifd0, ifd0Count, 0)
	}
	tiff = append(tiff, data...)
	payload := append([]byte("Exif\x00\x00"), tiff...)

	var img bytes.Buffer
	if err := jpeg.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	raw := img.Bytes()

	out := append([]byte{}, raw[:2]...)
	out = append(out, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, raw[2:]...)
}

func TestExtractCaptureMetadata_JPEG(t *testing.T) {
	t.Parallel()

	const stamp = "2023:01:01 10:00:00"

	tests := []struct {
		name       string
		ifd0       []exifEntry
		exif       []exifEntry
		want       MetadataMap
		wantScore  int
		wantStrong bool
	}{
		{
			name: "modify date counts as DateTime",
			ifd0: []exifEntry{{tag: 0x010f, ascii: "Canon"}, {tag: 0x0132, ascii: stamp}},
			want: MetadataMap{"Make": "Canon", "DateTime": stamp},
			// camera 35 + timestamp 15
			wantScore: 50,
		},
		{
			name: "ISO and create date in the exif IFD",
			ifd0: []exifEntry{{tag: 0x010f, ascii: "Canon"}},
			exif: []exifEntry{{tag: 0x8827, short: 400}, {tag: 0x9004, ascii: stamp}},
			want: MetadataMap{
				"Make":              "Canon",
				"ISOSpeedRatings":   uint16(400),
				"DateTimeDigitized": stamp,
			},
			wantScore:  70,
			wantStrong: true,
		},
		{
			name: "original timestamp and generator software",
			ifd0: []exifEntry{{tag: 0x0131, ascii: "Midjourney v6"}},
			exif: []exifEntry{{tag: 0x9003, ascii: stamp}},
			want: MetadataMap{"Software": "Midjourney v6", "DateTimeOriginal": stamp},
			// timestamp 15 - suspicious software 40, clamped
			wantScore: 0,
		},
		{
			name:      "non-capture tags are dropped",
			ifd0:      []exifEntry{{tag: 0x0110, ascii: "EOS R5"}, {tag: 0x0128, short: 2}},
			want:      MetadataMap{"Model": "EOS R5"},
			wantScore: PointsCameraIdentity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractCaptureMetadata(exifJPEG(t, tc.ifd0, tc.exif))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractCaptureMetadata() = %#v, want %#v", got, tc.want)
			}
			score := ScoreMetadata(got)
			if score.Score != tc.wantScore {
				t.Errorf("Score = %d, want %d", score.Score, tc.wantScore)
			}
			if score.IsStronglyReal != tc.wantStrong {
				t.Errorf("IsStronglyReal = %v, want %v", score.IsStronglyReal, tc.wantStrong)
			}
		})
	}
}

func TestSniffImageFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []byte
		wantOK bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, true},
		{"png", []byte("\x89PNG\r\n\x1a\n...."), true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), true},
		{"tiff little endian", []byte("II*\x00\x08\x00"), true},
		{"tiff big endian", []byte("MM\x00*\x00\x08"), true},
		{"gif", []byte("GIF89a"), false},
		{"short riff", []byte("RIFF"), false},
	}

	for _, tc := range tests {
		if _, ok := sniffImageFormat(tc.data); ok != tc.wantOK {
			t.Errorf("sniffImageFormat(%s) ok = %v, want %v", tc.name, ok, tc.wantOK)
		}
	}
}
