package wire

import gogoproto "github.com/gogo/protobuf/proto"

// Compile-time check that every wire message satisfies the classic
// gogo/protobuf Message interface (Reset/String/ProtoMessage), the same
// interface these hand-written Marshal/Unmarshal pairs are modeled after.
var (
	_ gogoproto.Message = (*SubscribeRequest)(nil)
	_ gogoproto.Message = (*Block)(nil)
	_ gogoproto.Message = (*Microblock)(nil)
	_ gogoproto.Message = (*Rollback)(nil)
	_ gogoproto.Message = (*UpdatesBatch)(nil)
	_ gogoproto.Message = (*SubscribeEvent)(nil)
	_ gogoproto.Message = (*Transaction)(nil)
	_ gogoproto.Message = (*DataEntryDelta)(nil)
	_ gogoproto.Message = (*StateDiff)(nil)
)

// SubscribeRequest opens a subscription starting at FromHeight (spec.md §6).
type SubscribeRequest struct {
	FromHeight int64
}

func (m *SubscribeRequest) Reset()         { *m = SubscribeRequest{} }
func (m *SubscribeRequest) String() string { return "SubscribeRequest" }
func (m *SubscribeRequest) ProtoMessage()  {}

func (m *SubscribeRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendInt64(buf, 1, m.FromHeight)
	return buf, nil
}

func (m *SubscribeRequest) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			v, err := d.int64()
			if err != nil {
				return err
			}
			m.FromHeight = v
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// DataEntryDelta mirrors events.DataEntryDelta on the wire.
type DataEntryDelta struct {
	Address string
	Key     string
	Type    string
	Int     int64
	Bool    bool
	Binary  []byte
	String_ string
}

func (m *DataEntryDelta) Reset()         { *m = DataEntryDelta{} }
func (m *DataEntryDelta) String() string { return "DataEntryDelta" }
func (m *DataEntryDelta) ProtoMessage()  {}

func (m *DataEntryDelta) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.Address)
	buf = appendString(buf, 2, m.Key)
	buf = appendString(buf, 3, m.Type)
	buf = appendInt64(buf, 4, m.Int)
	buf = appendBool(buf, 5, m.Bool)
	buf = appendBytes(buf, 6, m.Binary)
	buf = appendString(buf, 7, m.String_)
	return buf, nil
}

func (m *DataEntryDelta) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.Address, err = d.string(); err != nil {
				return err
			}
		case 2:
			if m.Key, err = d.string(); err != nil {
				return err
			}
		case 3:
			if m.Type, err = d.string(); err != nil {
				return err
			}
		case 4:
			if m.Int, err = d.int64(); err != nil {
				return err
			}
		case 5:
			if m.Bool, err = d.bool(); err != nil {
				return err
			}
		case 6:
			if m.Binary, err = d.bytes(); err != nil {
				return err
			}
		case 7:
			if m.String_, err = d.string(); err != nil {
				return err
			}
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transaction mirrors events.Transaction on the wire.
type Transaction struct {
	ID          string
	Type        int64
	Sender      string
	Recipient   string
	Amount      int64
	AssetID     string
	DataEntries []*DataEntryDelta
}

func (m *Transaction) Reset()         { *m = Transaction{} }
func (m *Transaction) String() string { return "Transaction" }
func (m *Transaction) ProtoMessage()  {}

func (m *Transaction) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.ID)
	buf = appendInt64(buf, 2, m.Type)
	buf = appendString(buf, 3, m.Sender)
	buf = appendString(buf, 4, m.Recipient)
	buf = appendInt64(buf, 5, m.Amount)
	buf = appendString(buf, 6, m.AssetID)
	for _, de := range m.DataEntries {
		var err error
		buf, err = appendMessage(buf, 7, de)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *Transaction) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.ID, err = d.string(); err != nil {
				return err
			}
		case 2:
			if m.Type, err = d.int64(); err != nil {
				return err
			}
		case 3:
			if m.Sender, err = d.string(); err != nil {
				return err
			}
		case 4:
			if m.Recipient, err = d.string(); err != nil {
				return err
			}
		case 5:
			if m.Amount, err = d.int64(); err != nil {
				return err
			}
		case 6:
			if m.AssetID, err = d.string(); err != nil {
				return err
			}
		case 7:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			de := &DataEntryDelta{}
			if err := de.Unmarshal(b); err != nil {
				return err
			}
			m.DataEntries = append(m.DataEntries, de)
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Block mirrors events.BlockEvent on the wire.
type Block struct {
	Height       int64
	ID           string
	ParentID     string
	Timestamp    int64
	Transactions []*Transaction
}

func (m *Block) Reset()         { *m = Block{} }
func (m *Block) String() string { return "Block" }
func (m *Block) ProtoMessage()  {}

func (m *Block) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendInt64(buf, 1, m.Height)
	buf = appendString(buf, 2, m.ID)
	buf = appendString(buf, 3, m.ParentID)
	buf = appendInt64(buf, 4, m.Timestamp)
	for _, tx := range m.Transactions {
		var err error
		buf, err = appendMessage(buf, 5, tx)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *Block) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.Height, err = d.int64(); err != nil {
				return err
			}
		case 2:
			if m.ID, err = d.string(); err != nil {
				return err
			}
		case 3:
			if m.ParentID, err = d.string(); err != nil {
				return err
			}
		case 4:
			if m.Timestamp, err = d.int64(); err != nil {
				return err
			}
		case 5:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			tx := &Transaction{}
			if err := tx.Unmarshal(b); err != nil {
				return err
			}
			m.Transactions = append(m.Transactions, tx)
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Microblock mirrors events.MicroblockEvent on the wire.
type Microblock struct {
	ReferenceBlockID string
	Transactions     []*Transaction
}

func (m *Microblock) Reset()         { *m = Microblock{} }
func (m *Microblock) String() string { return "Microblock" }
func (m *Microblock) ProtoMessage()  {}

func (m *Microblock) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.ReferenceBlockID)
	for _, tx := range m.Transactions {
		var err error
		buf, err = appendMessage(buf, 2, tx)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *Microblock) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.ReferenceBlockID, err = d.string(); err != nil {
				return err
			}
		case 2:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			tx := &Transaction{}
			if err := tx.Unmarshal(b); err != nil {
				return err
			}
			m.Transactions = append(m.Transactions, tx)
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback mirrors events.RollbackEvent on the wire.
type Rollback struct {
	ToBlockID string
}

func (m *Rollback) Reset()         { *m = Rollback{} }
func (m *Rollback) String() string { return "Rollback" }
func (m *Rollback) ProtoMessage()  {}

func (m *Rollback) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.ToBlockID)
	return buf, nil
}

func (m *Rollback) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.ToBlockID, err = d.string(); err != nil {
				return err
			}
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// StateDiff mirrors events.StateDiff on the wire.
type StateDiff struct {
	Address string
	Key     string
	Value   string
}

func (m *StateDiff) Reset()         { *m = StateDiff{} }
func (m *StateDiff) String() string { return "StateDiff" }
func (m *StateDiff) ProtoMessage()  {}

func (m *StateDiff) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.Address)
	buf = appendString(buf, 2, m.Key)
	buf = appendString(buf, 3, m.Value)
	return buf, nil
}

func (m *StateDiff) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.Address, err = d.string(); err != nil {
				return err
			}
		case 2:
			if m.Key, err = d.string(); err != nil {
				return err
			}
		case 3:
			if m.Value, err = d.string(); err != nil {
				return err
			}
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdatesBatch mirrors events.UpdatesBatchEvent on the wire.
type UpdatesBatch struct {
	Height int64
	ID     string
	Diffs  []*StateDiff
}

func (m *UpdatesBatch) Reset()         { *m = UpdatesBatch{} }
func (m *UpdatesBatch) String() string { return "UpdatesBatch" }
func (m *UpdatesBatch) ProtoMessage()  {}

func (m *UpdatesBatch) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendInt64(buf, 1, m.Height)
	buf = appendString(buf, 2, m.ID)
	for _, diff := range m.Diffs {
		var err error
		buf, err = appendMessage(buf, 3, diff)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *UpdatesBatch) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			if m.Height, err = d.int64(); err != nil {
				return err
			}
		case 2:
			if m.ID, err = d.string(); err != nil {
				return err
			}
		case 3:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			sd := &StateDiff{}
			if err := sd.Unmarshal(b); err != nil {
				return err
			}
			m.Diffs = append(m.Diffs, sd)
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// SubscribeEvent is the sum type wrapping exactly one of Block, Microblock,
// Rollback, or Batch (spec.md §4.1). Field numbers double as a lightweight
// oneof: Unmarshal records whichever field arrived.
type SubscribeEvent struct {
	Block      *Block
	Microblock *Microblock
	Rollback   *Rollback
	Batch      *UpdatesBatch
}

func (m *SubscribeEvent) Reset()         { *m = SubscribeEvent{} }
func (m *SubscribeEvent) String() string { return "SubscribeEvent" }
func (m *SubscribeEvent) ProtoMessage()  {}

func (m *SubscribeEvent) Marshal() ([]byte, error) {
	var buf []byte
	var err error
	switch {
	case m.Block != nil:
		buf, err = appendMessage(buf, 1, m.Block)
	case m.Microblock != nil:
		buf, err = appendMessage(buf, 2, m.Microblock)
	case m.Rollback != nil:
		buf, err = appendMessage(buf, 3, m.Rollback)
	case m.Batch != nil:
		buf, err = appendMessage(buf, 4, m.Batch)
	}
	return buf, err
}

func (m *SubscribeEvent) Unmarshal(data []byte) error {
	d := newDecoder(data)
	for !d.done() {
		field, wt, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			m.Block = &Block{}
			if err := m.Block.Unmarshal(b); err != nil {
				return err
			}
		case 2:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			m.Microblock = &Microblock{}
			if err := m.Microblock.Unmarshal(b); err != nil {
				return err
			}
		case 3:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			m.Rollback = &Rollback{}
			if err := m.Rollback.Unmarshal(b); err != nil {
				return err
			}
		case 4:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			m.Batch = &UpdatesBatch{}
			if err := m.Batch.Unmarshal(b); err != nil {
				return err
			}
		default:
			if err := d.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}
