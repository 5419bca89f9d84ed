package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Reecheble2022/flowswitch-verify/internal/capture"
)

func frame() capture.Frame {
	return capture.Frame{MIME: "image/jpeg", Bytes: []byte("jpeg-bytes")}
}

func staticRecognizer(text string) Recognizer {
	return RecognizerFunc(func(context.Context, capture.Frame) (string, error) {
		return text, nil
	})
}

func TestMatchFields(t *testing.T) {
	t.Run("serial and denomination", func(t *testing.T) {
		f := MatchFields("FEDERAL RESERVE NOTE MB46279860C 50 FIFTY")
		assert.Equal(t, "MB46279860C", f.SerialNumber)
		assert.Equal(t, "50 USD", f.Denomination)
		assert.False(t, f.Degraded())
	})

	t.Run("nothing matches", func(t *testing.T) {
		f := MatchFields("smudged ink")
		assert.Equal(t, NotDetected, f.SerialNumber)
		assert.Equal(t, NotDetected, f.Denomination)
		assert.True(t, f.Degraded())
	})

	t.Run("serial only", func(t *testing.T) {
		f := MatchFields("AB1234567890")
		assert.Equal(t, "AB1234567890", f.SerialNumber)
		assert.Equal(t, NotDetected, f.Denomination)
		assert.True(t, f.Degraded())
	})

	t.Run("denomination must be a word on its own", func(t *testing.T) {
		f := MatchFields("note 150 units")
		assert.Equal(t, NotDetected, f.Denomination)
	})
}

func TestExtract(t *testing.T) {
	t.Run("recognizer error degrades instead of failing", func(t *testing.T) {
		svc := New(RecognizerFunc(func(context.Context, capture.Frame) (string, error) {
			return "", errors.New("engine crashed")
		}))
		f := svc.Extract(context.Background(), frame())
		assert.Equal(t, NotDetected, f.SerialNumber)
		assert.Equal(t, NotDetected, f.Denomination)
	})

	t.Run("timeout degrades instead of blocking", func(t *testing.T) {
		stuck := RecognizerFunc(func(ctx context.Context, _ capture.Frame) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		svc := New(stuck, WithTimeout(10*time.Millisecond))

		done := make(chan Fields, 1)
		go func() { done <- svc.Extract(context.Background(), frame()) }()

		select {
		case f := <-done:
			assert.True(t, f.Degraded())
		case <-time.After(2 * time.Second):
			t.Fatal("extraction did not complete within its bound")
		}
	})

	t.Run("empty frame degrades", func(t *testing.T) {
		svc := New(staticRecognizer("MB46279860C"))
		f := svc.Extract(context.Background(), capture.Frame{})
		assert.True(t, f.Degraded())
	})

	t.Run("nil recognizer degrades", func(t *testing.T) {
		svc := New(nil)
		f := svc.Extract(context.Background(), frame())
		assert.True(t, f.Degraded())
	})
}
