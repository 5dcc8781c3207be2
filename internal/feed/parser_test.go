package feed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

const mixedNamespaceFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:nhc="https://www.nhc.noaa.gov">
<channel>
<title>NHC Eastern Pacific</title>
<item>
<title>Eastern Pacific Tropical Weather Outlook</title>
<link>https://www.nhc.noaa.gov/gtwo.php?basin=epac</link>
<pubDate>Sun, 15 Jun 2025 11:30:00 GMT</pubDate>
<description>No formation expected.</description>
</item>
<item>
<title>Hurricane Barbara Public Advisory</title>
<link>https://www.nhc.noaa.gov/text/MIATCPEP2.shtml</link>
<pubDate>Sun, 15 Jun 2025 12:00:00 GMT</pubDate>
<description>...advisory text...</description>
<nhc:Cyclone>
<nhc:center>14.2, -120.9</nhc:center>
<nhc:type>Hurricane</nhc:type>
<nhc:name>Barbara</nhc:name>
<nhc:datetime>Sun, 15 Jun 2025 12:00:00 GMT</nhc:datetime>
<nhc:movement>WNW at 12 mph</nhc:movement>
<nhc:pressure>985 mb</nhc:pressure>
<nhc:wind>75 mph</nhc:wind>
<nhc:headline>Hurricane Barbara strengthens</nhc:headline>
<nhc:wallet>EP2</nhc:wallet>
<nhc:atcf>EP022025</nhc:atcf>
</nhc:Cyclone>
</item>
<item>
<title>Tropical Storm Cosme Public Advisory</title>
<link>https://www.nhc.noaa.gov/text/MIATCPEP3.shtml</link>
<pubDate>Sun, 15 Jun 2025 12:00:00 GMT</pubDate>
<description>...advisory text...</description>
<Cyclone>
<center>15.1N, 125.4W</center>
<type>Tropical Storm</type>
<name>Cosme</name>
<datetime>1100 AM PDT Sun Jun 15</datetime>
<wind>50 mph</wind>
<wallet>EP3</wallet>
<atcf>EP032025</atcf>
</Cyclone>
</item>
</channel>
</rss>`

func testParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParse(t *testing.T) {
	t.Run("mixed namespace conventions", func(t *testing.T) {
		entries, err := testParser(t).Parse([]byte(mixedNamespaceFeed))
		require.NoError(t, err)

		var got []domain.RawAdvisory
		for raw := range entries {
			got = append(got, raw)
		}
		require.Len(t, got, 2)

		// Qualified elements.
		assert.Equal(t, "EP022025", got[0][domain.FieldATCF])
		assert.Equal(t, "Barbara", got[0][domain.FieldName])
		assert.Equal(t, "985 mb", got[0][domain.FieldPressure])
		assert.Equal(t, "Hurricane Barbara Public Advisory", got[0][domain.FieldTitle])
		assert.Equal(t, "Sun, 15 Jun 2025 12:00:00 GMT", got[0][domain.FieldPubDate])

		// Unqualified elements land in the same keys.
		assert.Equal(t, "EP032025", got[1][domain.FieldATCF])
		assert.Equal(t, "Cosme", got[1][domain.FieldName])
		assert.Equal(t, "1100 AM PDT Sun Jun 15", got[1][domain.FieldDatetime])

		// Absent optional elements are absent keys, not empty strings.
		_, hasPressure := got[1][domain.FieldPressure]
		assert.False(t, hasPressure)
	})

	t.Run("items without a cyclone block are skipped", func(t *testing.T) {
		entries, err := testParser(t).Parse([]byte(mixedNamespaceFeed))
		require.NoError(t, err)

		for raw := range entries {
			assert.NotEmpty(t, raw[domain.FieldATCF])
		}
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		entries, err := testParser(t).Parse([]byte(mixedNamespaceFeed))
		require.NoError(t, err)

		count := func() int {
			n := 0
			for range entries {
				n++
			}
			return n
		}
		assert.Equal(t, 2, count())
		assert.Equal(t, 2, count())
	})

	t.Run("early break stops iteration", func(t *testing.T) {
		entries, err := testParser(t).Parse([]byte(mixedNamespaceFeed))
		require.NoError(t, err)

		n := 0
		for range entries {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("malformed document", func(t *testing.T) {
		_, err := testParser(t).Parse([]byte("<rss><channel><item>"))
		require.Error(t, err)

		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("empty channel yields no entries", func(t *testing.T) {
		entries, err := testParser(t).Parse([]byte(`<rss><channel><title>empty</title></channel></rss>`))
		require.NoError(t, err)

		n := 0
		for range entries {
			n++
		}
		assert.Zero(t, n)
	})
}
