package device

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
)

// OIDs queried against candidate printers (spec.md §4.A/§4.B). Named by
// the vendor/standard MIB branch they belong to.
const (
	oidHrDeviceType     = ".1.3.6.1.2.1.25.3.2.1.2.1"
	hrDeviceTypePrinter = ".1.3.6.1.2.1.25.3.1.5"

	oidSysName = ".1.3.6.1.2.1.1.5.0"

	oidHPDeviceID      = ".1.3.6.1.4.1.11.2.3.9.1.1.7.0"
	oidLexmarkDeviceID = ".1.3.6.1.4.1.641.2.1.2.1.2.1"
	oidPWGDeviceID     = ".1.3.6.1.2.1.43.5.1.1.16.1"
	oidZebraDeviceID   = ".1.3.6.1.4.1.10642.1.1.4.0"

	oidLexmarkRawPort    = ".1.3.6.1.4.1.641.2.1.2.1.7.1"
	oidZebraRawPort      = ".1.3.6.1.4.1.10642.1.1.6.0"
	oidPWGRawPort        = ".1.3.6.1.2.1.43.15.1.1.9.1.1"
	oidExtendedNetPort   = ".1.3.6.1.4.1.1602.1.2.1.7.1"
)

const (
	snmpDiscoveryBudget = 30 * time.Second
	snmpIdleWindow      = 2 * time.Second
	snmpPortDefault     = 9100
)

// snmpTransport backs the snmp:// scheme by resolving sysname-or-host to
// a raw-socket address and behaving as socketTransport thereafter.
type snmpTransport struct {
	*socketTransport
}

func openSNMP(u *url.URL, _ string, onError ErrorFunc) (*Handle, error) {
	host := u.Hostname()
	port, err := snmpResolvePort(host)
	if err != nil {
		port = snmpPortDefault
	}

	conn, err := dialSocket(host, port)
	if err != nil {
		return nil, wrapOpenError("snmp", u.String(), err)
	}
	return newHandle(u.String(), &snmpTransport{&socketTransport{conn: conn}}, onError), nil
}

func snmpClient(host string) *gosnmp.GoSNMP {
	return &gosnmp.GoSNMP{
		Target:    host,
		Port:      161,
		Community: "public",
		Version:   gosnmp.Version1,
		Timeout:   2 * time.Second,
		Retries:   1,
	}
}

// snmpResolvePort queries the vendor raw-socket-port OIDs, falling back
// to the default port unless the reply is a valid integer or decimal
// string not equal to 515 or 631 (spec.md §4.A).
func snmpResolvePort(host string) (int, error) {
	c := snmpClient(host)
	if err := c.Connect(); err != nil {
		return 0, err
	}
	defer c.Conn.Close()

	for _, oid := range []string{oidLexmarkRawPort, oidZebraRawPort, oidPWGRawPort, oidExtendedNetPort} {
		result, err := c.Get([]string{oid})
		if err != nil || len(result.Variables) == 0 {
			continue
		}
		if port, ok := decodePort(result.Variables[0]); ok {
			return port, nil
		}
	}
	return snmpPortDefault, nil
}

func decodePort(v gosnmp.SnmpPDU) (int, bool) {
	var n int
	switch val := v.Value.(type) {
	case int:
		n = val
	case string:
		p, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		n = p
	default:
		return 0, false
	}
	if n == 515 || n == 631 || n <= 0 {
		return 0, false
	}
	return n, true
}

// deviceIDFromSNMP queries the vendor 1284 device-ID variants in order
// (HP, Lexmark, PWG, Zebra), returning the first non-empty reply.
func deviceIDFromSNMP(c *gosnmp.GoSNMP) string {
	for _, oid := range []string{oidHPDeviceID, oidLexmarkDeviceID, oidPWGDeviceID, oidZebraDeviceID} {
		result, err := c.Get([]string{oid})
		if err != nil || len(result.Variables) == 0 {
			continue
		}
		if s, ok := result.Variables[0].Value.(string); ok && s != "" {
			return s
		}
		if b, ok := result.Variables[0].Value.([]byte); ok && len(b) > 0 {
			return string(b)
		}
	}
	return ""
}

// broadcastAddresses returns every IPv4 interface broadcast address, used
// to fan the SNMPv1 GetRequest out across the local network (spec.md
// §4.A).
func broadcastAddresses() []string {
	var out []string
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			bcast := broadcastOf(ipnet)
			if bcast != "" {
				out = append(out, bcast)
			}
		}
	}
	return out
}

func broadcastOf(ipnet *net.IPNet) string {
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return ""
	}
	mask := ipnet.Mask
	bcast := make(net.IP, len(ip4))
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast.String()
}

// listSNMP runs the SNMP discovery sweep described by spec.md §4.B: up to
// 30s, or until two consecutive 2s idle windows pass with no growth.
func listSNMP(ctx context.Context, cb func(DeviceInfo) (stop bool)) error {
	deadline := time.Now().Add(snmpDiscoveryBudget)
	var mu sync.Mutex
	seen := make(map[string]bool)
	stopped := false

	check := func(target string) {
		c := snmpClient(target)
		if err := c.Connect(); err != nil {
			return
		}
		defer c.Conn.Close()

		result, err := c.Get([]string{oidHrDeviceType})
		if err != nil || len(result.Variables) == 0 {
			return
		}
		typ, ok := result.Variables[0].Value.(string)
		if ok && !strings.HasPrefix(typ, hrDeviceTypePrinter) {
			return
		}

		nameResult, err := c.Get([]string{oidSysName})
		name := target
		if err == nil && len(nameResult.Variables) > 0 {
			if s, ok := nameResult.Variables[0].Value.(string); ok && s != "" {
				name = s
			}
		}

		deviceID := deviceIDFromSNMP(c)

		mu.Lock()
		defer mu.Unlock()
		if seen[target] || stopped {
			return
		}
		seen[target] = true

		info := DeviceInfo{
			URI:      fmt.Sprintf("snmp://%s", name),
			DeviceID: deviceID,
		}
		if cb(info) {
			stopped = true
		}
	}

	idleSince := time.Now()
	lastCount := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var wg sync.WaitGroup
		for _, b := range broadcastAddresses() {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				check(target)
			}(b)
		}
		wg.Wait()

		mu.Lock()
		count := len(seen)
		halted := stopped
		mu.Unlock()
		if halted {
			return nil
		}

		if count == lastCount {
			if time.Since(idleSince) >= 2*snmpIdleWindow {
				return nil
			}
		} else {
			lastCount = count
			idleSince = time.Now()
		}

		time.Sleep(snmpIdleWindow)
	}
	return nil
}
