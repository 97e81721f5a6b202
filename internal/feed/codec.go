package feed

import "encoding/binary"

// Fixed byte offsets within a packet. Header fields start at 0; payload
// fields are offset from HeaderSize.
const (
	offMsgType     = 0
	offVersion     = 1
	offPayloadSize = 2
	offSequence    = 4

	// trade payload, relative to HeaderSize
	offTradeTS     = 0
	offTradeSeqNum = 8
	offTradeSymbol = 16
	offTradeID     = 20
	offTradePrice  = 24
	offTradeQty    = 32
	offTradeSide   = 36
	// 3 bytes pad

	// quote payload, relative to HeaderSize
	offQuoteTS     = 0
	offQuoteSeqNum = 8
	offQuoteSymbol = 16
	offQuoteBidPx  = 20
	offQuoteAskPx  = 28
	offQuoteBidSz  = 36
	offQuoteAskSz  = 40
	offQuoteLevels = 44
	// 7 bytes pad
)

// ParseHeader decodes the fixed packet prefix. Returns false if the buffer
// is shorter than the header.
func ParseHeader(b []byte) (Header, bool) {
	if len(b) < HeaderSize {
		return Header{}, false
	}
	return Header{
		MsgType:     b[offMsgType],
		Version:     b[offVersion],
		PayloadSize: binary.LittleEndian.Uint16(b[offPayloadSize:]),
		Sequence:    binary.LittleEndian.Uint64(b[offSequence:]),
	}, true
}

// ParseEvent normalizes a full packet into an Event. The second return is
// false when the packet produces no event: heartbeats, order book messages,
// unknown types, or a payload shorter than its declared shape. Reads at
// fixed offsets only; never allocates.
func ParseEvent(b []byte, recvTS uint64) (Event, bool) {
	if len(b) < HeaderSize {
		return Event{}, false
	}
	p := b[HeaderSize:]

	switch b[offMsgType] {
	case MsgTrade:
		if len(p) < TradePayloadSize {
			return Event{}, false
		}
		return Event{
			RecvTS:     recvTS,
			ExchangeTS: binary.LittleEndian.Uint64(p[offTradeTS:]),
			SymbolID:   binary.LittleEndian.Uint32(p[offTradeSymbol:]),
			Kind:       KindTrade,
			Trade: TradeBody{
				Price: binary.LittleEndian.Uint64(p[offTradePrice:]),
				Qty:   binary.LittleEndian.Uint32(p[offTradeQty:]),
				Side:  p[offTradeSide],
			},
		}, true

	case MsgQuote:
		if len(p) < QuotePayloadSize {
			return Event{}, false
		}
		return Event{
			RecvTS:     recvTS,
			ExchangeTS: binary.LittleEndian.Uint64(p[offQuoteTS:]),
			SymbolID:   binary.LittleEndian.Uint32(p[offQuoteSymbol:]),
			Kind:       KindQuote,
			Quote: QuoteBody{
				BidPx: binary.LittleEndian.Uint64(p[offQuoteBidPx:]),
				AskPx: binary.LittleEndian.Uint64(p[offQuoteAskPx:]),
				BidSz: binary.LittleEndian.Uint32(p[offQuoteBidSz:]),
				AskSz: binary.LittleEndian.Uint32(p[offQuoteAskSz:]),
			},
		}, true

	default:
		return Event{}, false
	}
}

// DecodeTradeMsg reads a full trade payload (every wire field, not just the
// event subset). Used by the round-trip tests.
func DecodeTradeMsg(p []byte) (TradeMsg, bool) {
	if len(p) < TradePayloadSize {
		return TradeMsg{}, false
	}
	return TradeMsg{
		Timestamp: binary.LittleEndian.Uint64(p[offTradeTS:]),
		SeqNum:    binary.LittleEndian.Uint64(p[offTradeSeqNum:]),
		SymbolID:  binary.LittleEndian.Uint32(p[offTradeSymbol:]),
		TradeID:   binary.LittleEndian.Uint32(p[offTradeID:]),
		Price:     binary.LittleEndian.Uint64(p[offTradePrice:]),
		Qty:       binary.LittleEndian.Uint32(p[offTradeQty:]),
		Side:      p[offTradeSide],
	}, true
}

// DecodeQuoteMsg reads a full quote payload.
func DecodeQuoteMsg(p []byte) (QuoteMsg, bool) {
	if len(p) < QuotePayloadSize {
		return QuoteMsg{}, false
	}
	return QuoteMsg{
		Timestamp: binary.LittleEndian.Uint64(p[offQuoteTS:]),
		SeqNum:    binary.LittleEndian.Uint64(p[offQuoteSeqNum:]),
		SymbolID:  binary.LittleEndian.Uint32(p[offQuoteSymbol:]),
		BidPx:     binary.LittleEndian.Uint64(p[offQuoteBidPx:]),
		AskPx:     binary.LittleEndian.Uint64(p[offQuoteAskPx:]),
		BidSz:     binary.LittleEndian.Uint32(p[offQuoteBidSz:]),
		AskSz:     binary.LittleEndian.Uint32(p[offQuoteAskSz:]),
		NumLevels: p[offQuoteLevels],
	}, true
}

func appendHeader(dst []byte, msgType uint8, payloadSize uint16, seq uint64) []byte {
	dst = append(dst, msgType, WireVersion)
	dst = binary.LittleEndian.AppendUint16(dst, payloadSize)
	dst = binary.LittleEndian.AppendUint64(dst, seq)
	return dst
}

// AppendTradePacket encodes a complete trade packet (header + payload,
// including pad bytes) onto dst.
func AppendTradePacket(dst []byte, seq uint64, m TradeMsg) []byte {
	dst = appendHeader(dst, MsgTrade, TradePayloadSize, seq)
	dst = binary.LittleEndian.AppendUint64(dst, m.Timestamp)
	dst = binary.LittleEndian.AppendUint64(dst, m.SeqNum)
	dst = binary.LittleEndian.AppendUint32(dst, m.SymbolID)
	dst = binary.LittleEndian.AppendUint32(dst, m.TradeID)
	dst = binary.LittleEndian.AppendUint64(dst, m.Price)
	dst = binary.LittleEndian.AppendUint32(dst, m.Qty)
	dst = append(dst, m.Side, 0, 0, 0)
	return dst
}

// AppendQuotePacket encodes a complete quote packet onto dst.
func AppendQuotePacket(dst []byte, seq uint64, m QuoteMsg) []byte {
	dst = appendHeader(dst, MsgQuote, QuotePayloadSize, seq)
	dst = binary.LittleEndian.AppendUint64(dst, m.Timestamp)
	dst = binary.LittleEndian.AppendUint64(dst, m.SeqNum)
	dst = binary.LittleEndian.AppendUint32(dst, m.SymbolID)
	dst = binary.LittleEndian.AppendUint64(dst, m.BidPx)
	dst = binary.LittleEndian.AppendUint64(dst, m.AskPx)
	dst = binary.LittleEndian.AppendUint32(dst, m.BidSz)
	dst = binary.LittleEndian.AppendUint32(dst, m.AskSz)
	dst = append(dst, m.NumLevels, 0, 0, 0, 0, 0, 0, 0)
	return dst
}

// AppendHeartbeatPacket encodes a heartbeat (header only, zero payload).
func AppendHeartbeatPacket(dst []byte, seq uint64) []byte {
	return appendHeader(dst, MsgHeartbeat, 0, seq)
}
