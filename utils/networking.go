package utils

import (
	"fmt"
	"net"
	"strconv"
)

// OutboundIP returns the local address the host would use to reach target.
// Dialing UDP sends no packets.
func OutboundIP(target string) (net.IP, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return net.IP{}, fmt.Errorf("could not get UDP address - check network connection: %v", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP, nil
}

// AdvertisedURL is the compute service URL devices should configure as compute.url.
func AdvertisedURL(port int) (string, error) {
	ip, err := OutboundIP("8.8.8.8:80")
	if err != nil {
		return "", err
	}
	return "http://" + net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}
