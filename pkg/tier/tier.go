// Package tier defines the storage-tier taxonomy used for usage breakdowns.
//
// Tiers are reporting labels only - they carry no cost or retrieval semantics.
// Records whose storage class is absent or unrecognized are grouped under the
// reserved Unknown tier so breakdowns always partition the object set.
package tier

import "strings"

// Tier is a canonical storage-tier label.
type Tier string

// Canonical tiers for S3 storage classes.
const (
	Standard           Tier = "STANDARD"
	StandardIA         Tier = "STANDARD_IA"
	OneZoneIA          Tier = "ONEZONE_IA"
	IntelligentTiering Tier = "INTELLIGENT_TIERING"
	Glacier            Tier = "GLACIER"
	GlacierIR          Tier = "GLACIER_IR"
	DeepArchive        Tier = "DEEP_ARCHIVE"
	ReducedRedundancy  Tier = "REDUCED_REDUNDANCY"
	ExpressOneZone     Tier = "EXPRESS_ONEZONE"

	// Unknown is the reserved tier for records with an absent or
	// unrecognized storage class.
	Unknown Tier = "unknown"
)

// known maps uppercase storage-class names to canonical tiers.
var known = map[string]Tier{
	string(Standard):           Standard,
	string(StandardIA):         StandardIA,
	string(OneZoneIA):          OneZoneIA,
	string(IntelligentTiering): IntelligentTiering,
	string(Glacier):            Glacier,
	string(GlacierIR):          GlacierIR,
	string(DeepArchive):        DeepArchive,
	string(ReducedRedundancy):  ReducedRedundancy,
	string(ExpressOneZone):     ExpressOneZone,
}

// FromStorageClass maps a provider storage-class label to a canonical tier.
//
// Matching is case-insensitive and ignores surrounding whitespace. An empty
// or unrecognized label maps to Unknown.
func FromStorageClass(storageClass string) Tier {
	sc := strings.ToUpper(strings.TrimSpace(storageClass))
	if sc == "" {
		return Unknown
	}
	if t, ok := known[sc]; ok {
		return t
	}
	return Unknown
}

// String returns the tier label.
func (t Tier) String() string {
	return string(t)
}

// Totals is the running (bytes, count) pair tracked per tier.
type Totals struct {
	Bytes   int64 `json:"bytes"`
	Objects int64 `json:"objects"`
}

// Add folds one object of the given size into the totals.
func (t *Totals) Add(size int64) {
	t.Bytes += size
	t.Objects++
}

// Merge adds another totals pair into this one.
func (t *Totals) Merge(other Totals) {
	t.Bytes += other.Bytes
	t.Objects += other.Objects
}
