package asset

import (
	"bytes"
	"regexp"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/model"
)

func TestContentSnID_Pattern(t *testing.T) {
	date := time.Date(2024, 7, 15, 23, 0, 0, 0, time.UTC)
	id, err := ContentSnID(model.MediaVideo, "Acme Corp", "Summer Sale 2024", date, nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^VID-ACME-SUMM-20240715-[A-Z0-9]{4}$`), id)
}

func TestContentSnID_DeterministicSuffix(t *testing.T) {
	date := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	id, err := ContentSnID(model.MediaImage, "Globex", "Fall", date, bytes.NewReader([]byte{0, 25, 26, 71}))
	require.NoError(t, err)
	assert.Equal(t, "IMA-GLOB-FALL-20240715-AZ09", id)
}

func TestContentSnID_UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	date := time.Date(2024, 7, 15, 20, 0, 0, 0, loc)
	id, err := ContentSnID(model.MediaAudio, "Acme", "Radio", date, bytes.NewReader([]byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, "AUD-ACME-RADI-20240716-AAAA", id)
}

func TestContentSnID_DiscardsBiasedBytes(t *testing.T) {
	date := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	rnd := bytes.NewReader([]byte{252, 253, 254, 255, 0, 1, 2, 3})
	id, err := ContentSnID(model.MediaVideo, "Acme", "Summer", date, rnd)
	require.NoError(t, err)
	assert.Equal(t, "VID-ACME-SUMM-20240715-ABCD", id)
}

func TestRandomSuffix_Uniform(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	rnd := bytes.NewReader(all)

	counts := map[rune]int{}
	for i := 0; i < suffixLimit/suffixLen; i++ {
		s, err := randomSuffix(rnd)
		require.NoError(t, err)
		for _, r := range s {
			counts[r]++
		}
	}
	require.Len(t, counts, len(suffixAlphabet))
	for r, n := range counts {
		assert.Equal(t, suffixLimit/len(suffixAlphabet), n, "character %q", r)
	}
}

func TestContentSnID_RandomError(t *testing.T) {
	_, err := ContentSnID(model.MediaVideo, "Acme", "Summer", time.Now(), iotest.ErrReader(assert.AnError))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "random suffix")
}

func TestCode(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Acme Corp", 4, "ACME"},
		{"Café Ñandú", 4, "CAFE"},
		{"Zoë", 4, "ZOE"},
		{"Al", 4, "AL"},
		{"  #1 Fan!  ", 4, "1FAN"},
		{"", 4, "NA"},
		{"!!!", 4, "NA"},
		{"Video", 3, "VID"},
		{"Blog Post", 3, "BLO"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, code(tt.in, tt.n))
		})
	}
}
