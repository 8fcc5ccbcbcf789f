// Package process supervises a long-running helper daemon.
//
// The node uses it to keep wpa_supplicant alive when the wireless
// association is managed from this process instead of the init system.
//
// Features:
//   - Start/stop with SIGTERM to the process group, then SIGKILL
//   - Restart on unexpected exit with exponential backoff, reset once the
//     daemon has stayed up for StableThreshold
//   - Watchdog health check that kills a hung daemon
//   - Line-by-line capture of stdout/stderr into the logger
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "wpa_supplicant",
//	    Binary:           "/sbin/wpa_supplicant",
//	    Args:             []string{"-i", "wlan0", "-c", "/etc/wpa_supplicant/wpa_supplicant.conf"},
//	    RestartOnFailure: true,
//	})
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
