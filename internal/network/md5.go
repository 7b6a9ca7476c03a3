package network

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// tcpMD5SigMaxKeyLen is the RFC 2385 key length ceiling Linux's
// tcp_md5sig struct enforces.
const tcpMD5SigMaxKeyLen = 80

// setsockoptMD5 builds and installs a Linux tcp_md5sig structure for
// peer on fd. The struct layout (tcpm_addr sockaddr_storage[128],
// tcpm_flags, tcpm_prefixlen, tcpm_keylen, tcpm_ifindex, tcpm_key[80])
// is not modeled in golang.org/x/sys/unix, so it is packed here by hand
// against the <linux/tcp.h> definition.
func setsockoptMD5(fd int, peer net.IP, password string) error {
	if len(password) > tcpMD5SigMaxKeyLen {
		return fmt.Errorf("network: TCP-MD5 key longer than %d octets", tcpMD5SigMaxKeyLen)
	}

	buf := make([]byte, 8+128+4+tcpMD5SigMaxKeyLen)
	// sockaddr_storage: family(2) + port(2) + addr, starting at offset 0
	// within tcpm_addr, which itself starts at offset 0 of the struct.
	ip4 := peer.To4()
	if ip4 != nil {
		binary.LittleEndian.PutUint16(buf[0:2], unix.AF_INET)
		copy(buf[4:8], ip4)
	} else {
		binary.LittleEndian.PutUint16(buf[0:2], unix.AF_INET6)
		copy(buf[8:24], peer.To16())
	}

	const addrOffset = 0
	const flagsOffset = addrOffset + 128
	const prefixLenOffset = flagsOffset + 1
	const keyLenOffset = flagsOffset + 2
	const keyOffset = flagsOffset + 8 // after keylen(2) and ifindex(4)

	buf[prefixLenOffset] = 0 // exact-match, not prefix
	binary.LittleEndian.PutUint16(buf[keyLenOffset:keyLenOffset+2], uint16(len(password)))
	copy(buf[keyOffset:], password)

	return unix.SetsockoptString(fd, unix.IPPROTO_TCP, unix.TCP_MD5SIG, string(buf))
}
