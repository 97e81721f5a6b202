//go:build linux

package ingest

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// recvBufBytes is the kernel socket buffer. Large enough to ride out bursts
// while the loop is inside sequencing work.
const recvBufBytes = 16 << 20

// UDPTransport is a non-blocking multicast UDP receive socket built directly
// on the socket API so the hot path is a single recvfrom that returns EAGAIN
// instead of sleeping.
type UDPTransport struct {
	fd int
}

// JoinUDP opens the socket, binds the port, and joins the multicast group.
// Called once at initialization. A non-multicast (or empty) group address
// skips the membership and listens unicast, which the feed generator uses.
func JoinUDP(group string, port uint16, ifaceIP string) (*UDPTransport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("SO_REUSEADDR: %w", err)
	}
	// Best effort: the kernel clamps to net.core.rmem_max.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufBytes)

	sa := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind :%d: %w", port, err)
	}

	if ip := net.ParseIP(group); ip != nil && ip.IsMulticast() {
		mreq := &unix.IPMreq{}
		copy(mreq.Multiaddr[:], ip.To4())
		if ifip := net.ParseIP(ifaceIP); ifip != nil {
			copy(mreq.Interface[:], ifip.To4())
		}
		if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("join %s: %w", group, err)
		}
	}

	return &UDPTransport{fd: fd}, nil
}

// Recv performs one non-blocking receive. EAGAIN and EINTR report as
// no-data so the loop keeps spinning.
func (t *UDPTransport) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(t.fd, buf, unix.MSG_DONTWAIT)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("recvfrom: %w", err)
	}
	return n, nil
}

// Close releases the socket. The ingest loop observes the resulting EBADF
// as a fatal receive error if it is still running.
func (t *UDPTransport) Close() error {
	return unix.Close(t.fd)
}
