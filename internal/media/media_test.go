package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mime string
		want model.MediaKind
	}{
		{"video/mp4", model.MediaVideo},
		{"video/quicktime", model.MediaVideo},
		{"image/png", model.MediaImage},
		{"IMAGE/JPEG", model.MediaImage},
		{"audio/mpeg", model.MediaAudio},
		{"audio/wav; codecs=1", model.MediaAudio},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			got, err := Classify(tt.mime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Unsupported(t *testing.T) {
	for _, mt := range []string{"application/pdf", "text/plain", ""} {
		_, err := Classify(mt)
		assert.ErrorIs(t, err, ErrUnsupportedMedia, mt)
	}
}

func TestInlineable(t *testing.T) {
	assert.True(t, Inlineable("image/png"))
	assert.True(t, Inlineable("image/webp"))
	assert.False(t, Inlineable("image/tiff"))
	assert.False(t, Inlineable("video/mp4"))
}

func TestDetectType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "video/mp4", DetectType("video/mp4", "x.bin", nil))
	assert.Equal(t, "image/png", DetectType("application/octet-stream", "", png))
	assert.Equal(t, "image/jpeg", DetectType("", "spot.JPG", nil))
}

func TestDataURIRoundTrip(t *testing.T) {
	f := &File{MIMEType: "image/png", Data: []byte("not really a png")}
	uri := f.DataURI()
	assert.True(t, IsDataURI(uri))

	got, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.MIMEType)
	assert.Equal(t, f.Data, got.Data)
	assert.Equal(t, "image/png", ReferenceType(uri))
}

func TestParseDataURI_Invalid(t *testing.T) {
	cases := []string{
		"https://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,rawtext",
		"data:image/png;base64,!!!",
	}
	for _, c := range cases {
		_, err := ParseDataURI(c)
		assert.ErrorIs(t, err, ErrInvalidDataURI, c)
	}
}

func TestFileChecks(t *testing.T) {
	f := &File{MIMEType: "audio/mpeg", Data: make([]byte, 10)}
	kind, err := f.Kind()
	require.NoError(t, err)
	assert.Equal(t, model.MediaAudio, kind)
	assert.NoError(t, f.CheckSize(10))
	assert.ErrorIs(t, f.CheckSize(9), ErrTooLarge)
	assert.NoError(t, f.CheckSize(0))

	_, err = (&File{MIMEType: "audio/mpeg"}).Kind()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReferenceType(t *testing.T) {
	assert.Equal(t, "video/mp4", ReferenceType("gs://bucket/assets/spot.mp4"))
	assert.Equal(t, "image/png", ReferenceType("https://cdn.example.com/hero.png?v=2"))
	assert.Equal(t, "", ReferenceType("https://cdn.example.com/asset"))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "assets/abc/Summer_Spot_1_.mp4", ObjectName("/assets/", "abc", "Summer Spot(1).mp4"))
	assert.Equal(t, "abc/upload", ObjectName("", "abc", ""))
	assert.Equal(t, "p/k/evil.mp4", ObjectName("p", "k", "..\\..\\evil.mp4"))
}
