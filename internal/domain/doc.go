// Package domain models National Hurricane Center (NHC) advisory feed data.
//
// # Data Source
//
// Advisories originate from the NHC basin RSS feeds, e.g.
// https://www.nhc.noaa.gov/index-ep.xml (Eastern Pacific) and
// https://www.nhc.noaa.gov/index-at.xml (Atlantic). Each feed <item> may carry
// a Cyclone block with storm details. The feeds are not schema-stable: the
// Cyclone element and its children appear both namespace-qualified
// (<nhc:Cyclone>, xmlns:nhc="https://www.nhc.noaa.gov") and unqualified
// (<Cyclone>), sometimes within the same document, and optional children are
// routinely omitted.
//
// # NHC Data Conventions
//
// Storm identifier (ATCF):
//
//	"<basin><number><year>" → e.g. "EP022025" is the second Eastern Pacific
//	system of the 2025 season. The trailing four digits are the season year,
//	used when the feed supplies no explicit season. See [DeriveSeason].
//
// Coordinates ("center" element):
//
//	"<lat>, <lon>" in decimal degrees, e.g. "14.2, -120.9". Hemisphere
//	suffixes ("14.2N, 120.9W") and degree symbols also occur. South and West
//	are negative. Unparsable coordinates degrade to nil, never to zero, so a
//	missing position is distinguishable from the Gulf of Guinea.
//
// Wind and pressure:
//
//	Free text with units, e.g. "75 mph", "995 mb". Digits are extracted and
//	the unit stripped; values without any digits (including the "UNK"
//	sentinel) degrade to nil.
//
// Report timestamp ("datetime" element):
//
//	Several formats are observed:
//	  - RFC 1123: "Wed, 02 Jun 2021 11:17:33 GMT"
//	  - local advisory form: "1100 AM EDT Sat Jun 10" (year implied)
//	  - occasionally RFC 3339
//	All are normalized to a UTC instant. Naive timestamps are assumed GMT,
//	the zone NHC publishes in. The report timestamp is the sole change
//	signal: a history snapshot is recorded only when it differs from the
//	stored one. See [Reconcile].
//
// Storm type:
//
//	Classified from the Cyclone type, headline, and item title against a
//	fixed vocabulary (HURRICANE, TROPICAL STORM, TROPICAL DEPRESSION,
//	POST-TROPICAL), defaulting to UNKNOWN. Matching is case-insensitive
//	substring matching because the feeds embed the class in prose
//	("Hurricane Barbara Advisory Number 12").
//
// Wallet:
//
//	NHC groups per-storm products under a "wallet" code ("EP2", "AT1"). The
//	wallet's own RSS feed lives at nhc_<wallet>.xml on the same host as the
//	basin feed.
package domain
