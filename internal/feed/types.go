// Package feed defines the market-data wire format, the normalized Event
// handed to the consumer thread, and the pipeline's shared counters.
package feed

// Message types carried in the packet header. Order book messages
// (ORDER_ADD/DELETE/MODIFY) are sequenced but produce no event here; book
// construction happens downstream.
const (
	MsgTrade       uint8 = 0x01
	MsgQuote       uint8 = 0x02
	MsgOrderAdd    uint8 = 0x03
	MsgOrderDelete uint8 = 0x04
	MsgOrderModify uint8 = 0x05
	MsgHeartbeat   uint8 = 0xFF
)

// Wire layout sizes. The header and both payloads are packed little-endian
// with fixed offsets; see codec.go for the exact byte positions.
const (
	HeaderSize       = 12 // msg_type u8, version u8, payload_size u16, packet_sequence u64
	TradePayloadSize = 40
	QuotePayloadSize = 52

	WireVersion uint8 = 1
)

// PriceScale is the fixed-point price multiplier: wire integer = real price × 10 000.
const PriceScale = 10_000

// Header is the fixed packet prefix shared by every message type.
type Header struct {
	MsgType     uint8
	Version     uint8
	PayloadSize uint16
	Sequence    uint64
}

// TradeMsg mirrors the trade payload bit-for-bit (padding excluded).
type TradeMsg struct {
	Timestamp uint64
	SeqNum    uint64
	SymbolID  uint32
	TradeID   uint32
	Price     uint64
	Qty       uint32
	Side      uint8
}

// QuoteMsg mirrors the quote payload bit-for-bit (padding excluded).
type QuoteMsg struct {
	Timestamp uint64
	SeqNum    uint64
	SymbolID  uint32
	BidPx     uint64
	AskPx     uint64
	BidSz     uint32
	AskSz     uint32
	NumLevels uint8
}

// Kind tags the event body variant.
type Kind uint8

const (
	KindTrade Kind = iota + 1
	KindQuote
)

func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindQuote:
		return "quote"
	default:
		return "unknown"
	}
}

// TradeBody is the trade variant of an Event.
type TradeBody struct {
	Price uint64
	Qty   uint32
	Side  uint8
}

// QuoteBody is the quote variant of an Event.
type QuoteBody struct {
	BidPx uint64
	AskPx uint64
	BidSz uint32
	AskSz uint32
}

// Event is the normalized record the consumer observes. It is trivially
// copyable, owns no heap data, and fits within two cache lines, so it can be
// value-copied through the SPSC ring without allocation. Kind selects which
// body variant is meaningful.
type Event struct {
	RecvTS     uint64 // ingest timestamp, monotonic ticks
	ExchangeTS uint64 // timestamp carried in the payload
	SymbolID   uint32
	Kind       Kind

	Trade TradeBody
	Quote QuoteBody
}
