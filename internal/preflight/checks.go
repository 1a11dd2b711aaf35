package preflight

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"windsentry/internal/config"
)

const dialTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckObjectStorage verifies the storage endpoint accepts TCP connections.
// Credentials are not exercised here; the uploader surfaces auth failures.
func CheckObjectStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing endpoint"}
	}
	if strings.TrimSpace(cfg.Storage.Bucket) == "" {
		return Result{Name: name, Detail: "missing bucket"}
	}
	if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
		return Result{Name: name, Detail: "missing credentials"}
	}

	host := endpoint
	if !strings.Contains(host, ":") {
		if cfg.Storage.UseSSL {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	if err := dialCheck(ctx, host); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", host, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable, bucket %s", host, cfg.Storage.Bucket)}
}

// CheckCloudConfig verifies the managed-job settings needed by every cloud stage.
func CheckCloudConfig(cfg *config.Config) Result {
	const name = "Cloud configuration"

	if strings.TrimSpace(cfg.Cloud.Region) == "" {
		return Result{Name: name, Detail: "missing region"}
	}
	if strings.TrimSpace(cfg.Cloud.RoleArn) == "" {
		return Result{Name: name, Detail: "missing execution role ARN"}
	}
	if strings.TrimSpace(cfg.Deployment.FleetTargetArn) == "" {
		return Result{Name: name, Detail: "missing fleet target ARN"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("region %s", cfg.Cloud.Region)}
}

// CheckNotificationBroker verifies the MQTT broker accepts TCP connections
// when one is configured. An unconfigured broker passes as disabled.
func CheckNotificationBroker(ctx context.Context, cfg *config.Config) Result {
	const name = "Notification broker"

	broker := strings.TrimSpace(cfg.Notifications.Broker)
	if broker == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}

	host := broker
	if parsed, err := url.Parse(broker); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	if !strings.Contains(host, ":") {
		host += ":1883"
	}
	if err := dialCheck(ctx, host); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", host, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", host)}
}

func dialCheck(ctx context.Context, address string) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}
