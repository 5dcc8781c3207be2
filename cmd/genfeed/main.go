// Command genfeed writes a deterministic mock NHC advisory RSS document for
// tests and local runs. The generated document deliberately mixes qualified
// and unqualified cyclone elements and includes a summary item with no
// cyclone block, matching the inconsistencies observed in the live feeds.
//
// Usage:
//
//	go run ./cmd/genfeed -out testdata/mock_feed.xml
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

type mockStorm struct {
	atcf      string
	name      string
	stormType string
	center    string
	movement  string
	pressure  string
	wind      string
	headline  string
	wallet    string
	datetime  string
	qualified bool // emit nhc:-prefixed elements
}

var mockStorms = []mockStorm{
	{
		atcf:      "EP022025",
		name:      "Barbara",
		stormType: "Hurricane",
		center:    "14.2, -120.9",
		movement:  "WNW at 12 mph",
		pressure:  "985 mb",
		wind:      "75 mph",
		headline:  "Hurricane Barbara strengthens over the open Pacific",
		wallet:    "EP2",
		datetime:  "Sun, 15 Jun 2025 12:00:00 GMT",
		qualified: true,
	},
	{
		atcf:      "EP032025",
		name:      "Cosme",
		stormType: "Tropical Storm",
		center:    "15.1N, 125.4W",
		movement:  "NW at 9 mph",
		pressure:  "1002 mb",
		wind:      "50 mph",
		headline:  "Tropical Storm Cosme expected to weaken",
		wallet:    "EP3",
		datetime:  "1100 AM PDT Sun Jun 15",
		qualified: false,
	},
}

func main() {
	out := flag.String("out", "", "output path for the mock feed document")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		log.Fatal("missing required flag: -out")
	}

	doc := buildFeed(mockStorms)

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create output directory: %v", err)
		}
	}
	if err := os.WriteFile(*out, []byte(doc), 0o644); err != nil {
		log.Fatalf("write feed: %v", err)
	}
	log.Printf("wrote mock feed with %d storms: %s", len(mockStorms), *out)
}

func buildFeed(storms []mockStorm) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0" xmlns:nhc="https://www.nhc.noaa.gov">` + "\n")
	b.WriteString("<channel>\n<title>NHC Eastern Pacific</title>\n")
	b.WriteString("<pubDate>Sun, 15 Jun 2025 12:05:00 GMT</pubDate>\n")

	// Summary item with no cyclone block, as published between advisories.
	b.WriteString("<item>\n<title>Eastern Pacific Tropical Weather Outlook</title>\n")
	b.WriteString("<link>https://www.nhc.noaa.gov/gtwo.php?basin=epac</link>\n")
	b.WriteString("<pubDate>Sun, 15 Jun 2025 11:30:00 GMT</pubDate>\n")
	b.WriteString("<description>Tropical cyclone formation is not expected during the next 48 hours.</description>\n</item>\n")

	for _, s := range storms {
		b.WriteString(itemXML(s))
	}

	b.WriteString("</channel>\n</rss>\n")
	return b.String()
}

func itemXML(s mockStorm) string {
	prefix := ""
	if s.qualified {
		prefix = "nhc:"
	}
	el := func(name, value string) string {
		return fmt.Sprintf("<%s%s>%s</%s%s>\n", prefix, name, value, prefix, name)
	}

	var b strings.Builder
	b.WriteString("<item>\n")
	fmt.Fprintf(&b, "<title>%s %s Public Advisory</title>\n", s.stormType, s.name)
	fmt.Fprintf(&b, "<link>https://www.nhc.noaa.gov/text/MIATCP%s.shtml</link>\n", s.wallet)
	fmt.Fprintf(&b, "<guid>https://www.nhc.noaa.gov/text/MIATCP%s.shtml</guid>\n", s.wallet)
	fmt.Fprintf(&b, "<pubDate>Sun, 15 Jun 2025 12:00:00 GMT</pubDate>\n")
	fmt.Fprintf(&b, "<description>...%s %s advisory text...</description>\n", s.stormType, s.name)
	fmt.Fprintf(&b, "<%sCyclone>\n", prefix)
	b.WriteString(el("center", s.center))
	b.WriteString(el("type", s.stormType))
	b.WriteString(el("name", s.name))
	b.WriteString(el("datetime", s.datetime))
	b.WriteString(el("movement", s.movement))
	b.WriteString(el("pressure", s.pressure))
	b.WriteString(el("wind", s.wind))
	b.WriteString(el("headline", s.headline))
	b.WriteString(el("wallet", s.wallet))
	b.WriteString(el("atcf", s.atcf))
	fmt.Fprintf(&b, "</%sCyclone>\n", prefix)
	b.WriteString("</item>\n")
	return b.String()
}
