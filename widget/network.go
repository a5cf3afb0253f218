package widget

import (
	"fmt"

	"github.com/wuliuqii/mgs/pkg/network"
)

// NetworkState classifies connectivity for display.
type NetworkState int

const (
	NetworkOffline NetworkState = iota
	NetworkDisconnected
	NetworkWifiConnected
	NetworkWiredConnected
	NetworkVpnConnected
)

func (s NetworkState) String() string {
	switch s {
	case NetworkOffline:
		return "offline"
	case NetworkDisconnected:
		return "disconnected"
	case NetworkWifiConnected:
		return "wifi"
	case NetworkWiredConnected:
		return "wired"
	case NetworkVpnConnected:
		return "vpn"
	}
	return "unknown"
}

// Network icons.
const (
	IconWifiOff  Icon = "wifi-off"
	IconWifiLow  Icon = "wifi-low"
	IconWifiHigh Icon = "wifi-high"
	IconWifiFull Icon = "wifi-full"
	IconEthernet Icon = "ethernet"
	IconVpn      Icon = "vpn"
)

// WifiIcon maps signal strength to a band: below 25 low, below 50 high,
// otherwise full.
func WifiIcon(strength uint8) Icon {
	switch {
	case strength < 25:
		return IconWifiLow
	case strength < 50:
		return IconWifiHigh
	default:
		return IconWifiFull
	}
}

// NetworkIcon classifies a snapshot. Disabled WiFi reads as offline;
// otherwise the first active connection decides.
func NetworkIcon(d network.Data) (NetworkState, Icon) {
	if !d.WifiEnabled {
		return NetworkOffline, IconWifiOff
	}
	if len(d.ActiveConnections) == 0 {
		return NetworkDisconnected, IconWifiOff
	}
	switch ac := d.ActiveConnections[0]; ac.Kind {
	case network.KindVpn:
		return NetworkVpnConnected, IconVpn
	case network.KindWired:
		return NetworkWiredConnected, IconEthernet
	case network.KindWifi:
		return NetworkWifiConnected, WifiIcon(ac.Strength)
	}
	return NetworkDisconnected, IconWifiOff
}

// FormatSpeed renders a byte rate: below one million as kb/s, otherwise
// as mb/s, both with two decimals.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 1e6 {
		return fmt.Sprintf("%.2f kb/s", bytesPerSec/1000)
	}
	return fmt.Sprintf("%.2f mb/s", bytesPerSec/1e6)
}

// Network shows the primary connection and its throughput.
type Network struct {
	base
	state NetworkState
	icon  Icon
	name  string
	rx    string
	tx    string
}

// NewNetwork creates a Network widget.
func NewNetwork(inv Invalidator) *Network {
	return &Network{base: newBase(inv), icon: IconWifiOff}
}

// Name implements Widget.
func (n *Network) Name() string { return "network" }

// Apply implements the snapshot update.
func (n *Network) Apply(d network.Data) {
	n.update(func() {
		n.state, n.icon = NetworkIcon(d)
		n.name = ""
		if len(d.ActiveConnections) > 0 && n.state != NetworkOffline {
			n.name = d.ActiveConnections[0].Name
		}

		stats, ok := primaryStatistics(d)
		if !ok {
			n.rx, n.tx = FormatSpeed(0), FormatSpeed(0)
			return
		}
		n.rx, n.tx = FormatSpeed(stats.RxSpeed()), FormatSpeed(stats.TxSpeed())
	})
}

// primaryStatistics returns the counters of the device carrying the primary
// connection. A VPN without a device of its own rides on the next
// connection's device. Counters of unrelated devices are never used.
func primaryStatistics(d network.Data) (network.Statistics, bool) {
	for _, ac := range d.ActiveConnections {
		if ac.Device == "" {
			continue
		}
		return d.StatisticsFor(ac.Device)
	}
	return network.Statistics{}, false
}

// State returns the current classification.
func (n *Network) State() NetworkState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// View implements Widget.
func (n *Network) View() []Block {
	n.mu.Lock()
	defer n.mu.Unlock()
	return []Block{
		{Name: n.Name(), Instance: "connection", Icon: n.icon, Text: n.name},
		{Name: n.Name(), Instance: "rx", Text: "↓ " + n.rx},
		{Name: n.Name(), Instance: "tx", Text: "↑ " + n.tx},
	}
}
