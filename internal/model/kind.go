package model

// EntityKind names one of the versioned tables. The Projector groups
// produced rows by kind; the Repository dispatches append_versions by kind.
type EntityKind string

const (
	KindAsset                  EntityKind = "asset"
	KindAssetName              EntityKind = "asset_name"
	KindAssetDescription       EntityKind = "asset_description"
	KindAssetTicker            EntityKind = "asset_ticker"
	KindAssetLabel             EntityKind = "asset_label"
	KindAssetWxLabel           EntityKind = "asset_wx_label"
	KindDataEntry              EntityKind = "data_entry"
	KindIssuerBalance          EntityKind = "issuer_balance"
	KindOutLeasing             EntityKind = "out_leasing"
	KindPredefinedVerification EntityKind = "predefined_verification"
)

// AllKinds enumerates every versioned table in a stable order, used when
// rollback_to must call reopen_<table> for each of them (spec.md §9, second
// open question: always reopen every table, never guess which ones moved).
var AllKinds = []EntityKind{
	KindAsset,
	KindAssetName,
	KindAssetDescription,
	KindAssetTicker,
	KindAssetLabel,
	KindAssetWxLabel,
	KindDataEntry,
	KindIssuerBalance,
	KindOutLeasing,
	KindPredefinedVerification,
}

// NaturalKeyed is implemented by every versioned payload type so generic
// Repository code can group/compare rows without a type switch.
type NaturalKeyed interface {
	NaturalKey() string
}

// Update is one row the Projector wants appended for a given entity kind.
// Payload is the concrete versioned-row type (model.Asset, model.DataEntry,
// ...); the Repository type-asserts it per Kind.
type Update struct {
	Kind    EntityKind
	Payload NaturalKeyed
}

// InvalidationMode is the cache-invalidation granularity a commit emits
// (spec.md §4.4).
type InvalidationMode string

const (
	InvalidateBlockchainData  InvalidationMode = "assets_blockchain_data"
	InvalidateUserDefinedData InvalidationMode = "assets_user_defined_data"
	InvalidateLabels          InvalidationMode = "asset_labels"
	InvalidateAll             InvalidationMode = "all_data"
)

// modeRank orders modes from narrowest to broadest. Nothing in this module
// reads it; WidestMode compares modes directly.
var modeRank = map[InvalidationMode]int{
	InvalidateLabels:          0,
	InvalidateUserDefinedData: 1,
	InvalidateBlockchainData:  1,
	InvalidateAll:             2,
}

// WidestMode returns the narrowest InvalidationMode that covers both modes.
// assets_blockchain_data and assets_user_defined_data are siblings (neither
// contains the other) so combining them escalates to all_data; combining
// either with itself or with asset_labels keeps the original, per the
// conservative open-question decision in DESIGN.md (labels never narrow a
// blockchain/user-defined mutation).
func WidestMode(a, b InvalidationMode) InvalidationMode {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a == b {
		return a
	}
	if a == InvalidateLabels {
		return b
	}
	if b == InvalidateLabels {
		return a
	}
	return InvalidateAll
}

// ModeForKind is the conservative kind->mode mapping. AssetLabel and
// AssetWxLabel both map to assets_user_defined_data (not the narrower
// asset_labels) per spec.md §9's first open question; asset_labels exists
// as a value Cache.Invalidate understands, but nothing here produces it,
// since that would require operator guidance this implementation doesn't
// have.
func ModeForKind(k EntityKind) InvalidationMode {
	switch k {
	case KindAsset, KindIssuerBalance, KindOutLeasing:
		return InvalidateBlockchainData
	case KindAssetName, KindAssetDescription, KindAssetTicker,
		KindAssetLabel, KindAssetWxLabel, KindPredefinedVerification:
		return InvalidateUserDefinedData
	case KindDataEntry:
		return InvalidateBlockchainData
	default:
		return InvalidateAll
	}
}
