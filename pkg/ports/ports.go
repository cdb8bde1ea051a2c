// Package ports picks a listen port for the HTTP bridge.
package ports

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

const (
	maxAttempts = 50
	searchRange = 1000
)

// ListenAvailable binds startPort on host when it is free, otherwise a
// random free port in [startPort, startPort+1000]. The returned listener
// is open, so the port cannot be taken before the caller serves on it.
func ListenAvailable(host string, startPort int) (net.Listener, error) {
	if l, err := listen(host, startPort); err == nil {
		return l, nil
	}

	maxPort := startPort + searchRange
	if maxPort > 65535 {
		maxPort = 65535
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		port := startPort + rand.IntN(maxPort-startPort+1)
		if l, err := listen(host, port); err == nil {
			return l, nil
		}
	}
	return nil, fmt.Errorf("unable to find available port after %d attempts in range %d-%d", maxAttempts, startPort, maxPort)
}

// Listen applies ListenAvailable to a host:port address. Port 0 lets the
// kernel choose.
func Listen(addr string) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	if port == 0 {
		return listen(host, 0)
	}
	return ListenAvailable(host, port)
}

func listen(host string, port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}
