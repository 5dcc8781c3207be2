package feed

import (
	"encoding/xml"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

// ParseError reports a document that cannot be interpreted as an RSS feed at
// all. Individual bad entries inside a well-formed document never produce a
// ParseError; they are skipped during iteration.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("malformed feed document: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts raw feed bytes into advisory entries.
//
// NHC feeds declare the cyclone namespace inconsistently: <nhc:Cyclone> and
// <Cyclone> both occur, sometimes in the same document, and child elements
// follow suit. Decoding matches on local element names only, so both
// conventions land in the same fields.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a feed parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// rssDocument mirrors the subset of RSS structure the pipeline consumes.
// Tags carry no namespace so qualified and unqualified elements both match.
type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title   string    `xml:"title"`
		PubDate string    `xml:"pubDate"`
		Items   []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Description string        `xml:"description"`
	Cyclones    []cycloneElem `xml:"Cyclone"`
}

// cycloneElem captures every child of a Cyclone block generically; the feeds
// omit optional children freely, so the set of keys varies per advisory.
type cycloneElem struct {
	Children []rawElem `xml:",any"`
}

type rawElem struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// Parse interprets raw bytes as an advisory feed document. On success it
// returns a finite, restartable sequence of raw advisories — one per cyclone
// block, in document order. Items without a cyclone block (summaries,
// outlooks) are skipped during iteration. A *ParseError is returned only when
// the document is not well-formed RSS.
func (p *Parser) Parse(data []byte) (iter.Seq[domain.RawAdvisory], error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	items := doc.Channel.Items
	return func(yield func(domain.RawAdvisory) bool) {
		for i, item := range items {
			if len(item.Cyclones) == 0 {
				p.logger.Debug("feed item has no cyclone block, skipping",
					"index", i, "title", item.Title)
				continue
			}
			for _, cyclone := range item.Cyclones {
				if !yield(advisoryFrom(item, cyclone)) {
					return
				}
			}
		}
	}, nil
}

// advisoryFrom flattens one item and one of its cyclone blocks into a raw
// field map. Cyclone children are keyed by lower-cased local name; repeated
// elements keep the first non-empty value.
func advisoryFrom(item rssItem, cyclone cycloneElem) domain.RawAdvisory {
	raw := domain.RawAdvisory{
		domain.FieldTitle:       strings.TrimSpace(item.Title),
		domain.FieldLink:        strings.TrimSpace(item.Link),
		domain.FieldGUID:        strings.TrimSpace(item.GUID),
		domain.FieldPubDate:     strings.TrimSpace(item.PubDate),
		domain.FieldDescription: strings.TrimSpace(item.Description),
	}

	for _, child := range cyclone.Children {
		key := strings.ToLower(child.XMLName.Local)
		text := strings.TrimSpace(child.Text)
		if text == "" {
			continue
		}
		if _, exists := raw[key]; !exists {
			raw[key] = text
		}
	}
	return raw
}
