// Package capture wraps the device sensors the sessions draw from: a camera
// producing still frames and a locator producing a single coordinate pair.
// Both are one-shot asynchronous acquisitions behind narrow interfaces so
// the engines stay testable without hardware.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

// ErrNoFix means the device has not reported a position yet.
var ErrNoFix = errors.New("no position reported by the device")

// Frame is one captured still image.
type Frame struct {
	MIME  string
	Bytes []byte
}

// ParseDataURL decodes a base64 data URL ("data:image/jpeg;base64,...")
// into a Frame. Frontends deliver camera stills in this form.
func ParseDataURL(s string) (Frame, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Frame{}, verrs.New(verrs.CodeInput, "not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Frame{}, verrs.New(verrs.CodeInput, "malformed data URL")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return Frame{}, verrs.New(verrs.CodeInput, "unsupported data URL encoding")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, verrs.Wrap(err, verrs.CodeInput, "invalid base64 image payload")
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return Frame{MIME: mime, Bytes: raw}, nil
}

// DataURL renders the frame back into data URL form for previews.
func (f Frame) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", f.MIME, base64.StdEncoding.EncodeToString(f.Bytes))
}

// Empty reports whether the frame holds no image data.
func (f Frame) Empty() bool { return len(f.Bytes) == 0 }

// Camera acquires one still image. A nil frame with nil error means no
// device is available; the caller decides how loudly to surface that.
type Camera interface {
	CaptureImage(ctx context.Context) (*Frame, error)
}

// CameraFunc adapts a function to the Camera interface.
type CameraFunc func(ctx context.Context) (*Frame, error)

func (f CameraFunc) CaptureImage(ctx context.Context) (*Frame, error) { return f(ctx) }

// Locator acquires the current device coordinates. Implementations must
// respect ctx cancellation; callers bound the acquisition with a timeout.
type Locator interface {
	CurrentPosition(ctx context.Context) (identity.Coordinates, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (identity.Coordinates, error)

func (f LocatorFunc) CurrentPosition(ctx context.Context) (identity.Coordinates, error) {
	return f(ctx)
}

// Locate runs the locator under a hard timeout and normalizes its failures
// into sensor errors.
func Locate(ctx context.Context, loc Locator, timeout time.Duration) (identity.Coordinates, error) {
	if loc == nil {
		return identity.Coordinates{}, verrs.New(verrs.CodeSensor, "Geolocation is not supported on this device.")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coords, err := loc.CurrentPosition(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return identity.Coordinates{}, verrs.Wrap(err, verrs.CodeSensor, "Timed out acquiring your location.")
		}
		return identity.Coordinates{}, verrs.Wrap(err, verrs.CodeSensor, "Could not acquire your location: "+err.Error())
	}
	return coords, nil
}
