package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/slices"
)

// describeListeners names the local sockets listening on port and, where
// the OS allows it, the processes that own them. It returns "" when nothing
// can be found, for instance because the listener lives on another host or
// the connection table is not readable.
func describeListeners(ctx context.Context, port int) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return ""
	}

	var found []string
	for _, c := range conns {
		if c.Status != "LISTEN" || int(c.Laddr.Port) != port {
			continue
		}
		desc := fmt.Sprintf("%s:%d", c.Laddr.IP, c.Laddr.Port)
		if c.Pid > 0 {
			desc += fmt.Sprintf(" pid %d", c.Pid)
			if p, err := process.NewProcessWithContext(ctx, c.Pid); err == nil {
				if name, err := p.NameWithContext(ctx); err == nil && name != "" {
					desc += " (" + name + ")"
				}
			}
		}
		found = append(found, desc)
	}
	slices.Sort(found)
	return strings.Join(slices.Compact(found), ", ")
}
