package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// Seeds returns one address per node, in index order: the base IP with its
// last octet incremented by the node index.
//
// Example:
//
//	Seeds(Config{BaseIP: "127.0.0.1", NumNodes: 3})
//	// ["127.0.0.1", "127.0.0.2", "127.0.0.3"]
func Seeds(c Config) ([]string, error) {
	octets, err := parseBaseIP(c.BaseIP)
	if err != nil {
		return nil, err
	}
	if c.NumNodes < 1 {
		return nil, fmt.Errorf("%w: node count must be at least 1, got %d", ErrConfiguration, c.NumNodes)
	}
	if last := octets[3] + c.NumNodes - 1; last > 255 {
		return nil, fmt.Errorf("%w: %d nodes starting at %s overflow the last octet (%d)",
			ErrConfiguration, c.NumNodes, c.BaseIP, last)
	}

	prefix := fmt.Sprintf("%d.%d.%d.", octets[0], octets[1], octets[2])
	seeds := make([]string, c.NumNodes)
	for i := range seeds {
		seeds[i] = prefix + strconv.Itoa(octets[3]+i)
	}
	return seeds, nil
}

func parseBaseIP(ip string) ([4]int, error) {
	var octets [4]int

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return octets, fmt.Errorf("%w: %q is not a legal IP address", ErrConfiguration, ip)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return octets, fmt.Errorf("%w: %q is not a legal IP address", ErrConfiguration, ip)
		}
		octets[i] = n
	}
	return octets, nil
}
