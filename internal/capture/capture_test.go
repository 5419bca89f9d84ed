package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
	"github.com/Reecheble2022/flowswitch-verify/pkg/verrs"
)

func TestParseDataURL(t *testing.T) {
	t.Run("valid jpeg data URL", func(t *testing.T) {
		f, err := ParseDataURL("data:image/jpeg;base64,aGVsbG8=")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", f.MIME)
		assert.Equal(t, []byte("hello"), f.Bytes)
	})

	t.Run("round trip", func(t *testing.T) {
		orig := Frame{MIME: "image/png", Bytes: []byte{0x89, 0x50, 0x4e, 0x47}}
		parsed, err := ParseDataURL(orig.DataURL())
		require.NoError(t, err)
		assert.Equal(t, orig, parsed)
	})

	t.Run("rejects non data URLs", func(t *testing.T) {
		_, err := ParseDataURL("https://example.com/image.jpg")
		assert.True(t, verrs.Is(err, verrs.CodeInput))
	})

	t.Run("rejects missing base64 marker", func(t *testing.T) {
		_, err := ParseDataURL("data:image/jpeg,plain")
		assert.True(t, verrs.Is(err, verrs.CodeInput))
	})

	t.Run("rejects bad base64", func(t *testing.T) {
		_, err := ParseDataURL("data:image/jpeg;base64,!!!")
		assert.True(t, verrs.Is(err, verrs.CodeInput))
	})
}

func TestFrameQueue(t *testing.T) {
	cam := NewFrameQueue(Frame{MIME: "image/jpeg", Bytes: []byte("one")})

	f, err := cam.CaptureImage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, []byte("one"), f.Bytes)

	// Queue exhausted: silent none.
	f, err = cam.CaptureImage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)

	cam.Fail(errors.New("shutter jammed"))
	_, err = cam.CaptureImage(context.Background())
	assert.Error(t, err)
}

func TestLocate(t *testing.T) {
	t.Run("returns coordinates", func(t *testing.T) {
		loc := &StaticLocator{Coords: identity.Coordinates{Latitude: 0.31, Longitude: 32.58}}
		coords, err := Locate(context.Background(), loc, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 0.31, coords.Latitude)
	})

	t.Run("nil locator is a sensor error", func(t *testing.T) {
		_, err := Locate(context.Background(), nil, time.Second)
		assert.True(t, verrs.Is(err, verrs.CodeSensor))
	})

	t.Run("permission denied surfaces as sensor error with cause", func(t *testing.T) {
		loc := &StaticLocator{Err: errors.New("permission denied")}
		_, err := Locate(context.Background(), loc, time.Second)
		require.True(t, verrs.Is(err, verrs.CodeSensor))
		assert.Contains(t, verrs.UserMessage(err), "permission denied")
	})

	t.Run("timeout surfaces as sensor error", func(t *testing.T) {
		slow := LocatorFunc(func(ctx context.Context) (identity.Coordinates, error) {
			<-ctx.Done()
			return identity.Coordinates{}, ctx.Err()
		})
		_, err := Locate(context.Background(), slow, 10*time.Millisecond)
		require.True(t, verrs.Is(err, verrs.CodeSensor))
		assert.Contains(t, verrs.UserMessage(err), "Timed out")
	})
}
