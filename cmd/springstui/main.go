package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/springsconnect/springs/internal/profile"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui"
)

const (
	startWait    = 10 * time.Second
	pollInterval = 300 * time.Millisecond
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	noStart := flag.Bool("no-start", false, "fail instead of starting springsd when it is not running")
	flag.Parse()

	if err := run(profile.Resolve(*profileFlag), !*noStart); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(name string, autostart bool) error {
	if err := profile.ValidateName(name); err != nil {
		return err
	}
	socketPath := profile.SocketPath(name)

	if !daemonAnswers(socketPath) {
		if !autostart {
			return fmt.Errorf("springsd is not running for profile %q", name)
		}
		fmt.Fprintf(os.Stderr, "starting springsd for profile %q...\n", name)
		if err := startDaemon(name, socketPath); err != nil {
			return fmt.Errorf("%w, see %s", err, profile.LogPath(name))
		}
	}

	c, err := rpc.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer func() { _ = c.Close() }()

	return tui.NewApp(c, name).Run()
}

// daemonAnswers reports whether a daemon serves Status on socketPath.
func daemonAnswers(socketPath string) bool {
	c, err := rpc.Dial(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Status(ctx)
	return err == nil
}

// startDaemon runs springsd next to this binary, or from PATH, and waits
// until it answers. A daemon that exits first is reported with its status.
func startDaemon(name, socketPath string) error {
	bin, err := daemonBinary()
	if err != nil {
		return err
	}
	cmd := exec.Command(bin, "--profile", name, "--quiet")
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	deadline := time.NewTimer(startWait)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited")
			}
			return fmt.Errorf("springsd stopped during startup: %w", err)
		case <-deadline.C:
			return errors.New("springsd did not become ready")
		case <-tick.C:
			if daemonAnswers(socketPath) {
				return nil
			}
		}
	}
}

func daemonBinary() (string, error) {
	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), "springsd")
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	bin, err := exec.LookPath("springsd")
	if err != nil {
		return "", fmt.Errorf("springsd not found next to springstui or in PATH: %w", err)
	}
	return bin, nil
}
