// Package mdns advertises the node as _vbinode._tcp and browses for other
// nodes on the local network.
package mdns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/smazurov/vbinode/internal/events"
)

// Service is the advertised service type.
const Service = "_vbinode._tcp"

const domain = "local."

// Node is a discovered vbinode instance.
type Node struct {
	Instance  string
	Hostname  string
	Addresses []net.IP
	Port      int
	TXT       map[string]string
}

// Advertiser publishes this node and keeps its acquisition state in the
// TXT record.
type Advertiser struct {
	server *zeroconf.Server
	logger *slog.Logger

	mu   sync.Mutex
	base  map[string]string
	state string

	unsub func()
}

// Advertise registers the service on all interfaces. txt holds static
// key/value pairs such as the version.
func Advertise(instance string, port int, txt map[string]string, logger *slog.Logger) (*Advertiser, error) {
	a := &Advertiser{base: txt, state: "disabled", logger: logger}
	server, err := zeroconf.Register(instance, Service, domain, port, a.record(), nil)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", Service, err)
	}
	a.server = server
	logger.Info("Advertising service", "instance", instance, "service", Service, "port", port)
	return a, nil
}

// Watch follows acquisition state changes on the bus.
func (a *Advertiser) Watch(bus *events.Bus) {
	a.unsub = bus.Subscribe(func(e events.AcquisitionStateChangedEvent) {
		a.SetState(e.State)
	})
}

// SetState updates the state key of the TXT record.
func (a *Advertiser) SetState(state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state == a.state {
		return
	}
	a.state = state
	a.server.SetText(a.record())
	a.logger.Debug("Updated TXT record", "state", state)
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a.unsub != nil {
		a.unsub()
	}
	a.server.Shutdown()
}

func (a *Advertiser) record() []string {
	kv := make(map[string]string, len(a.base)+1)
	for k, v := range a.base {
		kv[k] = v
	}
	kv["state"] = a.state
	return formatTXT(kv)
}

// formatTXT renders key=value pairs in key order.
func formatTXT(kv map[string]string) []string {
	out := make([]string, 0, len(kv))
	for k, v := range kv {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func parseTXT(txt []string) map[string]string {
	kv := make(map[string]string, len(txt))
	for _, entry := range txt {
		k, v, _ := strings.Cut(entry, "=")
		if k != "" {
			kv[k] = v
		}
	}
	return kv
}

// Discover browses for nodes until timeout and returns them deduplicated
// by host and port.
func Discover(ctx context.Context, timeout time.Duration) ([]Node, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]Node)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)
				found[fmt.Sprintf("%s|%d", e.HostName, e.Port)] = Node{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       parseTXT(e.Text),
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, Service, domain, entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}
	<-done

	nodes := make([]Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Instance < nodes[j].Instance })
	return nodes, nil
}

// cleanInstance removes zeroconf escapes: "\ " => " "
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
