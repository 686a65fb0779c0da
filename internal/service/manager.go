// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package service manages the compiler service process.
//
// A Manager either points at an externally run compiler (a fixed address) or
// spawns the bundled compiler binary on first use. The spawned binary is told to
// pick a free port with PORT=0 and announces it on its first line of output:
//
//	Server listening on 53417
//
// The Manager then reports localhost:<port> until Shutdown.
package service

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"malloy/cli/internal/errors"

	"github.com/rs/zerolog"
)

// DefaultAddress is where an already running internal compiler listens.
const DefaultAddress = "localhost:14310"

var listening = regexp.MustCompile(`^Server listening on (\d+)$`)

// Options configures a Manager.
type Options struct {
	// ExternalAddress, when set, is used verbatim and nothing is spawned.
	ExternalAddress string
	// BinaryPath is the compiler binary. Defaults to DefaultBinaryPath.
	BinaryPath string
	Logger     zerolog.Logger
}

// Manager hands out the compiler address, spawning the compiler when needed.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	external string
	path     string
	addr     string
	ready    bool
	cmd      *exec.Cmd
	exited   chan struct{}
	log      zerolog.Logger
}

// New creates a Manager. Nothing is started until Address is called.
func New(opts Options) *Manager {
	return &Manager{
		external: opts.ExternalAddress,
		path:     opts.BinaryPath,
		addr:     DefaultAddress,
		log:      opts.Logger.With().Str("component", "service").Logger(),
	}
}

// BinaryName returns the compiler binary name for a platform, such as
// malloy-service-linux-x64 or malloy-service-win-x64.exe.
func BinaryName(goos, goarch string) string {
	name := "malloy-service"
	switch goos {
	case "windows":
		name += "-win"
	case "darwin":
		name += "-macos"
	default:
		name += "-" + goos
	}
	switch {
	case goarch == "amd64" || goos == "darwin" || goos == "windows":
		name += "-x64"
	case goarch == "arm64":
		name += "-arm64"
	}
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// DefaultBinaryPath locates the compiler binary next to the running executable.
func DefaultBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), BinaryName(runtime.GOOS, runtime.GOARCH)), nil
}

// Ready reports whether an address is available without spawning.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Address returns the compiler address, starting the compiler on first use.
func (m *Manager) Address(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return m.current(), nil
	}
	if m.external != "" {
		m.log.Debug().Str("address", m.external).Msg("using external compiler service")
		m.ready = true
		return m.external, nil
	}
	if err := m.spawn(ctx); err != nil {
		return "", err
	}
	return m.addr, nil
}

func (m *Manager) current() string {
	if m.external != "" {
		return m.external
	}
	return m.addr
}

func (m *Manager) spawn(ctx context.Context) error {
	path := m.path
	if path == "" {
		p, err := DefaultBinaryPath()
		if err != nil {
			return errors.Wrap(errors.ServiceFailed, "locate compiler service", err)
		}
		path = p
	}
	m.log.Debug().Str("path", path).Msg("starting compiler service")

	pr, pw := io.Pipe()
	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), "PORT=0")
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return errors.Wrap(errors.ServiceFailed, "start compiler service "+path, err)
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		pw.Close()
		m.log.Debug().Err(err).Msg("compiler service exited")
		close(exited)
	}()

	lines := bufio.NewScanner(pr)
	first := make(chan string, 1)
	go func() {
		if lines.Scan() {
			first <- strings.TrimRight(lines.Text(), "\r")
		} else {
			close(first)
		}
		// Keep draining so the child never blocks on a full pipe.
		for lines.Scan() {
			m.log.Debug().Str("output", lines.Text()).Msg("compiler service")
		}
	}()

	var line string
	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return ctx.Err()
	case l, ok := <-first:
		if !ok {
			return errors.New(errors.ServiceFailed, "compiler service exited without reporting its port")
		}
		line = l
	}

	match := listening.FindStringSubmatch(line)
	if match == nil {
		m.log.Debug().Str("output", line).Msg("compiler service not running")
		_ = cmd.Process.Kill()
		return errors.New(errors.ServiceFailed, fmt.Sprintf("compiler service did not report a port: %q", line))
	}

	m.log.Debug().Str("output", line).Msg("compiler service is running")
	m.cmd = cmd
	m.exited = exited
	m.addr = "localhost:" + match[1]
	m.ready = true
	return nil
}

// Shutdown kills a spawned compiler and forgets its address. The next Address
// call starts a new one.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	if m.cmd == nil {
		return nil
	}
	m.log.Debug().Msg("terminating compiler service")
	err := m.cmd.Process.Kill()
	<-m.exited
	m.cmd = nil
	m.addr = DefaultAddress
	if err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
