// Package entity defines the core domain entities for the bot: news records,
// their importance tiers, and the fingerprint used for deduplication.
package entity

import (
	"crypto/md5" // #nosec G501 -- fingerprint is a dedup key, not a security hash
	"encoding/hex"
	"time"
)

// ImportanceTier is the closed set of news importance categories.
// The ordering of the set governs both classification precedence and
// delivery sequencing.
type ImportanceTier string

const (
	TierUrgentPerson ImportanceTier = "URGENT_PERSON_ALERT"
	TierInstitution  ImportanceTier = "INSTITUTION_ALERT"
	TierMacro        ImportanceTier = "MACRO_ALERT"
	TierHigh         ImportanceTier = "HIGH"
	TierMedium       ImportanceTier = "MEDIUM"
)

// Tiers lists all importance tiers in delivery order, most urgent first.
var Tiers = []ImportanceTier{
	TierUrgentPerson,
	TierInstitution,
	TierMacro,
	TierHigh,
	TierMedium,
}

// PriorityTiers are the tiers delivered by the priority pass of a delivery
// cycle. DigestTiers are delivered afterwards by the digest pass.
var (
	PriorityTiers = []ImportanceTier{TierUrgentPerson, TierInstitution, TierMacro}
	DigestTiers   = []ImportanceTier{TierHigh, TierMedium}
)

// Rank returns the delivery rank of the tier. Lower values are more urgent.
// Unknown tiers rank after TierMedium so malformed rows sort last instead of
// hijacking the priority pass.
func (t ImportanceTier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return len(Tiers)
}

// Valid reports whether t is a member of the closed tier set.
func (t ImportanceTier) Valid() bool {
	return t.Rank() < len(Tiers)
}

// NewsRecord represents a deduplicated, classified news item persisted by the
// ingestion pipeline and consumed by the delivery queue.
//
// Fingerprint is unique across the whole table; the storage layer enforces
// that with a unique constraint, which is the single deduplication authority.
// Sent transitions false→true exactly once and never back.
type NewsRecord struct {
	ID              int64
	Fingerprint     string
	Title           string
	Body            string
	TitleTranslated string
	BodyTranslated  string
	Importance      ImportanceTier
	SourceURL       string
	Sent            bool
	SentAt          time.Time // zero until the record is marked sent
	CreatedAt       time.Time
}

// Fingerprint derives the deduplication key for a news item from its title
// and URL. The same logical item from the same source always yields the same
// value; body text is excluded because sources truncate it inconsistently.
func Fingerprint(title, url string) string {
	sum := md5.Sum([]byte(title + url)) // #nosec G401
	return hex.EncodeToString(sum[:])
}
