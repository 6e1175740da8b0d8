// Package model defines the versioned-row entities of the asset index's
// supersession (bitemporal) data model.
package model

import "encoding/json"

// MaxUID is the sentinel value of SupersededBy meaning "this row is
// currently live". It is the largest value a Postgres bigint can hold minus
// one, mirroring the sentinel reserved by the original Rust implementation.
const MaxUID int64 = 9_223_372_036_854_775_806

// Block is a canonical block or microblock anchor for versioned rows.
// Every versioned row's BlockUID references one of these; deleting a Block
// cascades to every row it introduced.
type Block struct {
	UID          int64
	Height       int64
	ID           string
	ParentID     string
	TimeStamp    int64
	IsMicroblock bool
}

// VerificationStatus is the enum PredefinedVerification.status takes.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationDeclined   VerificationStatus = "declined"
)

// Asset is the natural_key=id payload table: issuance + sponsorship facts.
type Asset struct {
	UID             int64
	BlockUID        int64
	SupersededBy    int64
	AssetID         string
	Name            string
	Description     string
	Ticker          string
	Issuer          string
	Precision       int32
	Smart           bool
	NFT             bool
	Reissuable      bool
	MinSponsoredFee int64
	Quantity        int64
	Script          json.RawMessage
}

// NaturalKey identifies the live-row uniqueness group this row belongs to.
func (a Asset) NaturalKey() string { return a.AssetID }

// AssetName is the mutable display name of an asset, versioned separately
// from Asset so a rename doesn't require rewriting the whole issuance row.
type AssetName struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Name         string
}

func (a AssetName) NaturalKey() string { return a.AssetID }

// AssetDescription is the mutable free-text description of an asset.
type AssetDescription struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Description  string
}

func (a AssetDescription) NaturalKey() string { return a.AssetID }

// AssetTicker is the mutable short human ticker symbol for an asset.
type AssetTicker struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Ticker       string
}

func (a AssetTicker) NaturalKey() string { return a.AssetID }

// AssetLabel holds the set of operator-curated labels attached to an asset.
type AssetLabel struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Labels       []string
}

func (a AssetLabel) NaturalKey() string { return a.AssetID }

// AssetWxLabel holds a single WX-exchange-specific label, kept separate from
// the general AssetLabel set per the original implementation's split.
type AssetWxLabel struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Label        string
}

func (a AssetWxLabel) NaturalKey() string { return a.AssetID }

// DataEntryValueType tags which of the value_* columns is populated.
type DataEntryValueType string

const (
	DataEntryInt    DataEntryValueType = "integer"
	DataEntryBool   DataEntryValueType = "boolean"
	DataEntryBinary DataEntryValueType = "binary"
	DataEntryString DataEntryValueType = "string"
)

// DataEntry is a single oracle-style (address, key) -> value row.
type DataEntry struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	Address      string
	Key          string
	ValueType    DataEntryValueType
	ValueInt     int64
	ValueBool    bool
	ValueBinary  []byte
	ValueString  string
}

// NaturalKey for a DataEntry is the (address, key) pair joined by a
// separator that cannot appear in either half (addresses and keys are both
// base58/UTF-8 without NUL).
func (d DataEntry) NaturalKey() string { return d.Address + "\x00" + d.Key }

// IssuerBalance is the cumulative Waves balance of an asset's issuer,
// recomputed from transaction effects within the block that changed it.
type IssuerBalance struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	Issuer       string
	Balance      int64
}

func (b IssuerBalance) NaturalKey() string { return b.Issuer }

// OutLeasing is the cumulative amount an address has leased out.
type OutLeasing struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	Address      string
	Amount       int64
}

func (l OutLeasing) NaturalKey() string { return l.Address }

// PredefinedVerification is an operator-maintained override of an asset's
// ticker and verification status, independent of on-chain state.
type PredefinedVerification struct {
	UID          int64
	BlockUID     int64
	SupersededBy int64
	AssetID      string
	Ticker       string
	Status       VerificationStatus
}

func (v PredefinedVerification) NaturalKey() string { return v.AssetID }
