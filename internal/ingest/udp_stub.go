//go:build !linux

package ingest

import "fmt"

// UDPTransport requires the Linux socket API.
type UDPTransport struct{}

func JoinUDP(group string, port uint16, ifaceIP string) (*UDPTransport, error) {
	return nil, fmt.Errorf("udp transport is only supported on linux")
}

func (t *UDPTransport) Recv(buf []byte) (int, error) { return 0, fmt.Errorf("unsupported platform") }
func (t *UDPTransport) Close() error                 { return nil }
