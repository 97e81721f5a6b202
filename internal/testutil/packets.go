// Package testutil provides packet builders shared by the pipeline tests.
package testutil

import "MarketFeed/internal/feed"

// TradePacket builds a complete trade packet with deterministic payload
// fields derived from the sequence number.
func TradePacket(seq uint64) []byte {
	return feed.AppendTradePacket(nil, seq, feed.TradeMsg{
		Timestamp: seq * 1_000,
		SeqNum:    seq,
		SymbolID:  42,
		TradeID:   uint32(seq),
		Price:     1_234_500 + seq, // fixed point, ×10 000
		Qty:       100,
		Side:      'B',
	})
}

// QuotePacket builds a complete quote packet.
func QuotePacket(seq uint64) []byte {
	return feed.AppendQuotePacket(nil, seq, feed.QuoteMsg{
		Timestamp: seq * 1_000,
		SeqNum:    seq,
		SymbolID:  42,
		BidPx:     1_234_000,
		AskPx:     1_236_000,
		BidSz:     500,
		AskSz:     400,
		NumLevels: 1,
	})
}

// HeartbeatPacket builds a header-only heartbeat.
func HeartbeatPacket(seq uint64) []byte {
	return feed.AppendHeartbeatPacket(nil, seq)
}
