package asset

import (
	"crypto/rand"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contentmix/internal/model"
)

const (
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen      = 4
	emptyCode      = "NA"

	// suffixLimit is the largest multiple of len(suffixAlphabet) below 256.
	// Bytes at or above it are discarded so every character is equally likely.
	suffixLimit = 256 - 256%len(suffixAlphabet)
)

// ContentSnID builds the human-readable content code
// {TYP}-{CREA}-{CAMP}-{YYYYMMDD}-{XXXX}. Each code is the first letters of
// its source with diacritics folded and everything but A-Z and 0-9
// removed. The suffix is drawn from rnd; nil means crypto/rand.
func ContentSnID(kind model.MediaKind, creator, campaign string, date time.Time, rnd io.Reader) (string, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	suffix, err := randomSuffix(rnd)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		code(string(kind), 3),
		code(creator, 4),
		code(campaign, 4),
		date.UTC().Format("20060102"),
		suffix,
	}, "-"), nil
}

func randomSuffix(rnd io.Reader) (string, error) {
	out := make([]byte, 0, suffixLen)
	one := make([]byte, 1)
	for len(out) < suffixLen {
		if _, err := io.ReadFull(rnd, one); err != nil {
			return "", eris.Wrap(err, "asset: read random suffix")
		}
		if int(one[0]) >= suffixLimit {
			continue
		}
		out = append(out, suffixAlphabet[int(one[0])%len(suffixAlphabet)])
	}
	return string(out), nil
}

// code folds s to uppercase ASCII alphanumerics and keeps the first n.
func code(s string, n int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if b.Len() == n {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return emptyCode
	}
	return b.String()
}
