package capture

import (
	"bytes"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

func TestTestPatternProducesValidJPEG(t *testing.T) {
	src := NewTestPattern()
	settings := session.CaptureSettings{FPS: 30, Quality: 80, Width: 320, Height: 240}

	data, err := src.Frame(settings)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestTestPatternFallsBackOnBadSettings(t *testing.T) {
	src := NewTestPattern()

	data, err := src.Frame(session.CaptureSettings{})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	def := session.DefaultSettings()
	assert.Equal(t, def.Width, img.Bounds().Dx())
	assert.Equal(t, def.Height, img.Bounds().Dy())
}

func TestTestPatternFramesDiffer(t *testing.T) {
	src := NewTestPattern()
	settings := session.CaptureSettings{FPS: 30, Quality: 80, Width: 320, Height: 240}

	a, err := src.Frame(settings)
	require.NoError(t, err)
	b, err := src.Frame(settings)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "the moving block must change between frames")
}

func TestParseFPSFlag(t *testing.T) {
	assert.Equal(t, 60, ParseFPSFlag("60"))
	assert.Equal(t, 7, ParseFPSFlag(" 7 "))
	assert.Equal(t, 30, ParseFPSFlag("not a number"))
	assert.Equal(t, 30, ParseFPSFlag("-4"))
}

func TestParseQualityFlag(t *testing.T) {
	assert.Equal(t, 40, ParseQualityFlag("low"))
	assert.Equal(t, 40, ParseQualityFlag("lo"))
	assert.Equal(t, 85, ParseQualityFlag("High"))
	assert.Equal(t, 95, ParseQualityFlag("max"))
	assert.Equal(t, 73, ParseQualityFlag("73"))
	assert.Equal(t, 85, ParseQualityFlag("900"))
	assert.Equal(t, 85, ParseQualityFlag("bogus"))
}

func TestPublisherFollowsPresenterSlot(t *testing.T) {
	sess := session.New(session.WithSettings(session.CaptureSettings{
		FPS: 60, Quality: 40, Width: 64, Height: 64,
	}))
	t.Cleanup(sess.Close)

	p, err := sess.Join("", "Presenter")
	require.NoError(t, err)

	pub := NewPublisher(sess, NewTestPattern(), p.ID)
	go pub.Run()
	t.Cleanup(pub.Stop)

	// Idle slot: nothing is produced.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, sess.FetchFrame().Empty())

	require.NoError(t, sess.StartPresenting(p.ID))
	require.Eventually(t, func() bool {
		return !sess.FetchFrame().Empty()
	}, 2*time.Second, 10*time.Millisecond, "frames should flow once the slot is held")

	require.NoError(t, sess.StopPresenting(p.ID))
	require.Eventually(t, func() bool {
		return sess.FetchFrame().Empty()
	}, 2*time.Second, 10*time.Millisecond, "release clears the frame record")

	// The loop must stay stopped afterwards.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, sess.FetchFrame().Empty())
}
