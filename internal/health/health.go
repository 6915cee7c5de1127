package health

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
)

// Status represents the health status of a guest container
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusStopped   Status = "stopped"
	StatusMissing   Status = "missing"

	// SSHReadyTimeout is the default time to wait for sshd after provisioning.
	SSHReadyTimeout = 30 * time.Second

	bannerPrefix = "SSH-"
	dialTimeout  = 2 * time.Second
	pollInterval = 500 * time.Millisecond
)

// CheckResult contains the results of health checks
type CheckResult struct {
	ContainerStatus runtime.ContainerStatus
	SSHReachable    bool
	Banner          string
	Uptime          string
}

// Status summarizes the result.
func (r *CheckResult) Status() Status {
	switch r.ContainerStatus {
	case runtime.StatusNotFound:
		return StatusMissing
	case runtime.StatusRunning:
		if r.SSHReachable {
			return StatusHealthy
		}
		return StatusUnhealthy
	case runtime.StatusUnknown:
		return StatusUnhealthy
	default:
		return StatusStopped
	}
}

// ReadBanner dials host:port and returns the SSH identification line.
func ReadBanner(ctx context.Context, host string, port int) (string, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	deadline := time.Now().Add(dialTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetReadDeadline(deadline)

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no banner from %s:%d: %w", host, port, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, bannerPrefix) {
		return "", fmt.Errorf("unexpected banner from %s:%d: %q", host, port, line)
	}
	return line, nil
}

// CheckSSH reports whether an sshd answers on host:port.
func CheckSSH(ctx context.Context, host string, port int) bool {
	_, err := ReadBanner(ctx, host, port)
	return err == nil
}

// WaitForBanner polls host:port until an SSH banner arrives or timeout passes.
func WaitForBanner(ctx context.Context, host string, port int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		banner, err := ReadBanner(ctx, host, port)
		if err == nil {
			return banner, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("ssh on %s:%d not ready after %s: %w", host, port, timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// Uptime returns the time since startedAt in a compact form.
func Uptime(startedAt, now time.Time) string {
	if startedAt.IsZero() {
		return "unknown"
	}
	return formatDuration(now.Sub(startedAt))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// Check inspects the named container and, when it runs, the SSH port.
func Check(ctx context.Context, rt runtime.Runtime, name, host string, port int) *CheckResult {
	result := &CheckResult{ContainerStatus: runtime.StatusUnknown, Uptime: "unknown"}

	info, err := rt.Status(ctx, name)
	if err != nil || info == nil {
		return result
	}
	result.ContainerStatus = info.Status
	if info.Status != runtime.StatusRunning {
		return result
	}
	result.Uptime = Uptime(info.StartedAt, time.Now())

	if banner, err := ReadBanner(ctx, host, port); err == nil {
		result.SSHReachable = true
		result.Banner = banner
	}
	return result
}

// GetSummary returns the overall health status of a guest container.
func GetSummary(ctx context.Context, rt runtime.Runtime, name, host string, port int) Status {
	return Check(ctx, rt, name, host, port).Status()
}
