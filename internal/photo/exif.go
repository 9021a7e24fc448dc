package photo

import (
	"bytes"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// CaptureInfo is the subset of EXIF data shown in the gallery.
type CaptureInfo struct {
	TakenAt *time.Time
	Camera  *string
}

// ReadCaptureInfo extracts the capture time and camera model from an image
// header. Files without EXIF data (PNG, GIF, stripped JPEGs) yield an empty
// CaptureInfo; extraction never fails the caller.
func ReadCaptureInfo(head []byte) CaptureInfo {
	var info CaptureInfo

	x, err := exif.Decode(bytes.NewReader(head))
	if err != nil {
		return info
	}

	if tm, err := x.DateTime(); err == nil && !tm.IsZero() {
		info.TakenAt = &tm
	}

	var parts []string
	for _, field := range []exif.FieldName{exif.Make, exif.Model} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if v, err := tag.StringVal(); err == nil {
			if v = strings.TrimSpace(strings.Trim(v, "\x00")); v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(parts) > 0 {
		camera := joinCamera(parts)
		info.Camera = &camera
	}

	return info
}

// joinCamera avoids "Canon Canon EOS 5D" when the model repeats the make.
func joinCamera(parts []string) string {
	if len(parts) == 2 && strings.HasPrefix(strings.ToLower(parts[1]), strings.ToLower(parts[0])) {
		return parts[1]
	}
	return strings.Join(parts, " ")
}
