// Package preflight runs the startup checks the supervisor performs
// before handing control to the Dedicated Server: bootstrapping the Wine
// prefix, confirming the configured ports are actually free, and probing
// local/external network reachability.
//
// Grounded on original_source/AstroTuxLauncher.py's update_wine_prefix and
// check_network_config, and original_source/utils/net.py.
package preflight

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"golang.org/x/sync/errgroup"

	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

const (
	winebootTimeout    = 30 * time.Second
	localProbeTimeout  = 2 * time.Second
	externalProbeTimeout = 10 * time.Second
	externalCheckURL   = "https://servercheck.spycibot.com/api"
	logUUID            = "Preflight"
)

// Checker runs preflight checks for one DS instance.
type Checker struct {
	WinePrefix string
	loglevel   int
}

// New returns a Checker rooted at winePrefix (WINEPREFIX directory).
func New(winePrefix string) *Checker {
	return &Checker{WinePrefix: winePrefix}
}

// UUID implements logger.ILogger.
func (c *Checker) UUID() string { return logUUID }

// Loglevel implements logger.ILogger.
func (c *Checker) Loglevel() int { return c.loglevel }

// SetLoglevel implements logger.ILogger.
func (c *Checker) SetLoglevel(l int) { c.loglevel = l }

// BootstrapWinePrefix runs `wineboot -u` against WinePrefix to create or
// update the Wine prefix, with WINEDEBUG silenced and DISPLAY unset so it
// never tries to open an X11 session on a headless host. Grounded on
// update_wine_prefix.
func (c *Checker) BootstrapWinePrefix(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, winebootTimeout)
	defer cancel()

	logger.LogInfo(c, "bootstrapping Wine prefix...")

	cmd := exec.CommandContext(ctx, "wineboot", "-u")
	cmd.Env = append(envWithout(os.Environ(), "DISPLAY"), "WINEPREFIX="+c.WinePrefix, "WINEDEBUG=-all")

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("preflight: wineboot failed: %w (%s)", err, string(out))
	}

	logger.LogInfo(c, "Wine prefix ready")
	return nil
}

func envWithout(env []string, key string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if len(kv) > len(key) && kv[:len(key)+1] == key+"=" {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// PortAvailable reports whether no process currently holds port (TCP or
// UDP) on any local address, enumerated via gopsutil instead of shelling
// out to ss/netstat the way the Python reference script does with
// subprocess calls into external CLI tools.
func PortAvailable(port uint32) (bool, error) {
	conns, err := psnet.Connections("inet")
	if err != nil {
		return false, fmt.Errorf("preflight: enumerating connections: %w", err)
	}

	for _, conn := range conns {
		if conn.Laddr.Port == port {
			return false, nil
		}
	}
	return true, nil
}

// Result collects the outcome of the concurrent network-reachability
// checks run by CheckNetwork.
type Result struct {
	LocalReachable    bool
	ExternalReachable bool
	RCONExposed       bool // true if the RCON port is reachable from outside; a security concern, not a fatal one
}

// CheckNetwork runs the DS-port local-loopback probe, the external
// reachability probe, and the RCON-exposure probe via an errgroup (spec.md
// §9 REDESIGN FLAGS: the reference script runs these sequentially with
// embedded sleeps). The two game-port probes both bind the game port, so
// they run one after the other in one goroutine; the RCON-exposure probe
// runs alongside them. A probe's own failure is recorded in Result, not
// returned as a group error — only setup failures (e.g. can't open a
// socket at all) abort the whole check.
func CheckNetwork(ctx context.Context, publicIP string, gamePort, rconPort uint32) (Result, error) {
	var res Result

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ok, err := probeLocalUDP(gctx, publicIP, gamePort)
		if err != nil {
			return err
		}
		res.LocalReachable = ok
		res.ExternalReachable = probeExternalUDP(gctx, publicIP, gamePort)
		return nil
	})

	g.Go(func() error {
		exposed, err := probeRCONExposed(gctx, publicIP, rconPort)
		if err != nil {
			return err
		}
		res.RCONExposed = exposed
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("preflight: network check failed: %w", err)
	}

	return res, nil
}

// probeLocalUDP sends a random secret to ip:port over UDP and listens for
// it on the same port, confirming this host can reach its own advertised
// address. Grounded on utils.net.net_test_local (tcp=False case).
func probeLocalUDP(ctx context.Context, ip string, port uint32) (bool, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return false, err
	}

	laddr := &net.UDPAddr{Port: int(port)}
	ln, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return false, fmt.Errorf("listening on udp port %d: %w", port, err)
	}
	defer ln.Close()

	received := make(chan bool, 1)
	go func() {
		buf := make([]byte, 64)
		ln.SetReadDeadline(time.Now().Add(localProbeTimeout))
		n, _, err := ln.ReadFromUDP(buf)
		if err != nil {
			received <- false
			return
		}
		received <- hex.EncodeToString(buf[:n]) == hex.EncodeToString(secret)
	}()

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return false, nil
	}
	defer conn.Close()
	conn.Write(secret)

	select {
	case ok := <-received:
		return ok, nil
	case <-ctx.Done():
		return false, nil
	case <-time.After(localProbeTimeout + time.Second):
		return false, nil
	}
}

// probeExternalUDP asks the community reachability-check endpoint to send
// a UDP probe at ip:port and reports whether it arrived. Grounded on
// utils.net.net_test_nonlocal. Failures (including the request itself
// failing) are reported as "not reachable", matching the reference
// behaviour of logging a warning and returning False.
func probeExternalUDP(ctx context.Context, ip string, port uint32) bool {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return false
	}
	defer ln.Close()

	gotProbe := make(chan bool, 1)
	go func() {
		buf := make([]byte, 64)
		ln.SetReadDeadline(time.Now().Add(externalProbeTimeout))
		_, _, err := ln.ReadFromUDP(buf)
		gotProbe <- err == nil
	}()

	url := fmt.Sprintf("%s?ip_port=%s:%d", externalCheckURL, ip, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: externalProbeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	select {
	case ok := <-gotProbe:
		return ok
	case <-time.After(externalProbeTimeout):
		return false
	}
}

// probeRCONExposed reports whether a TCP connection to ip:rconPort, dialed
// from this host, succeeds. The external reachability service is not used
// for this probe. Grounded on the RCON security check in
// AstroTuxLauncher.check_network_config.
func probeRCONExposed(ctx context.Context, ip string, rconPort uint32) (bool, error) {
	d := net.Dialer{Timeout: localProbeTimeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, rconPort))
	if err != nil {
		return false, nil
	}
	conn.Close()
	return true, nil
}
