package pg

import "github.com/wavesplatform/assetindex/internal/model"

// tableName maps an EntityKind to its Postgres table, matching the names
// the reopen_<table> / rollback_to SQL functions (migrations/, spec.md §6)
// are written against.
func tableName(k model.EntityKind) string {
	switch k {
	case model.KindAsset:
		return "asset"
	case model.KindAssetName:
		return "asset_name"
	case model.KindAssetDescription:
		return "asset_description"
	case model.KindAssetTicker:
		return "asset_ticker"
	case model.KindAssetLabel:
		return "asset_label"
	case model.KindAssetWxLabel:
		return "asset_wx_label"
	case model.KindDataEntry:
		return "data_entry"
	case model.KindIssuerBalance:
		return "issuer_balance"
	case model.KindOutLeasing:
		return "out_leasing"
	case model.KindPredefinedVerification:
		return "predefined_verification"
	default:
		return ""
	}
}
