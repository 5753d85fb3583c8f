// Package sshexec opens the single SSH session a push needs and streams the
// self-contained remote-update routine to sh on the target host's stdin.
//
// Connection parameters come from the environment config first and the
// operator's ~/.ssh/config second, host keys are verified against
// known_hosts, and authentication prefers a running ssh-agent with
// identity-file fallback.
package sshexec

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"livepush/internal/security"
)

const (
	// DefaultDialTimeout bounds the TCP connect and handshake so a dead
	// host cannot hang the whole push.
	DefaultDialTimeout = 30 * time.Second

	// DefaultSessionTimeout bounds the remote routine itself.
	DefaultSessionTimeout = 10 * time.Minute
)

// Target names one SSH destination. Zero-value User and Port fall back to
// ~/.ssh/config and then to the usual defaults.
type Target struct {
	Host string
	User string
	Port int
}

// Client dials deployment hosts and runs streamed scripts on them.
type Client struct {
	configPath     string
	knownHostsPath string
	dialTimeout    time.Duration
	sessionTimeout time.Duration
}

// NewClient creates a client resolving against the operator's own SSH setup.
func NewClient() *Client {
	home, _ := os.UserHomeDir()
	return &Client{
		configPath:     filepath.Join(home, ".ssh", "config"),
		knownHostsPath: filepath.Join(home, ".ssh", "known_hosts"),
		dialTimeout:    DefaultDialTimeout,
		sessionTimeout: DefaultSessionTimeout,
	}
}

// NewClientWithPaths creates a client with explicit config and known_hosts
// locations. Used by tests.
func NewClientWithPaths(configPath, knownHostsPath string) *Client {
	return &Client{
		configPath:     configPath,
		knownHostsPath: knownHostsPath,
		dialTimeout:    DefaultDialTimeout,
		sessionTimeout: DefaultSessionTimeout,
	}
}

// resolved holds the final connection parameters after merging the target
// with ~/.ssh/config.
type resolved struct {
	Addr          string
	User          string
	IdentityFiles []string
}

// resolveTarget merges the explicit target with the operator's ssh_config.
// Explicit values win; the config fills the gaps; sensible defaults last.
func (c *Client) resolveTarget(t Target) (resolved, error) {
	if t.Host == "" {
		return resolved{}, fmt.Errorf("ssh target host cannot be empty")
	}

	cfg := c.loadSSHConfig()

	hostname := t.Host
	if h, err := cfg.Get(t.Host, "Hostname"); err == nil && h != "" {
		hostname = h
	}

	username := t.User
	if username == "" {
		if u, err := cfg.Get(t.Host, "User"); err == nil && u != "" {
			username = u
		}
	}
	if username == "" {
		current, err := user.Current()
		if err != nil {
			return resolved{}, fmt.Errorf("no ssh user configured and current user unknown: %w", err)
		}
		username = current.Username
	}

	port := t.Port
	if port == 0 {
		if p, err := cfg.Get(t.Host, "Port"); err == nil && p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
	}
	if port == 0 {
		port = 22
	}

	var identities []string
	if files, err := cfg.GetAll(t.Host, "IdentityFile"); err == nil {
		for _, f := range files {
			identities = append(identities, expandHome(f))
		}
	}
	if len(identities) == 0 {
		home, _ := os.UserHomeDir()
		identities = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
	}

	return resolved{
		Addr:          net.JoinHostPort(hostname, strconv.Itoa(port)),
		User:          username,
		IdentityFiles: identities,
	}, nil
}

// loadSSHConfig parses the operator's ssh_config. A missing or unreadable
// file just means no overrides.
func (c *Client) loadSSHConfig() *ssh_config.Config {
	f, err := os.Open(c.configPath)
	if err != nil {
		return &ssh_config.Config{}
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return &ssh_config.Config{}
	}
	return cfg
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// authMethods prefers a running ssh-agent and falls back to any readable
// identity files.
func authMethods(identityFiles []string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			// The agent connection lives as long as the process; the
			// session is short-lived enough not to bother closing it.
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	var signers []ssh.Signer
	for _, file := range identityFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		if err := security.ValidateKeyPermissions(file); err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no ssh authentication available: no agent at SSH_AUTH_SOCK and no usable identity files (%v)", identityFiles)
	}
	return methods, nil
}

// dial opens an authenticated SSH connection with host key verification.
func (c *Client) dial(ctx context.Context, t Target) (*ssh.Client, error) {
	res, err := c.resolveTarget(t)
	if err != nil {
		return nil, err
	}

	kh, err := knownhosts.New(c.knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts from %s: %w", c.knownHostsPath, err)
	}

	methods, err := authMethods(res.IdentityFiles)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:              res.User,
		Auth:              methods,
		HostKeyCallback:   ssh.HostKeyCallback(kh),
		HostKeyAlgorithms: kh.HostKeyAlgorithms(res.Addr),
		Timeout:           c.dialTimeout,
	}

	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", res.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", res.Addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, res.Addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", res.Addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// RunScript opens exactly one session on the target and feeds the script to
// sh over stdin, returning the combined output. The session is torn down if
// the context is cancelled or the session timeout elapses.
func (c *Client) RunScript(ctx context.Context, t Target, script string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sessionTimeout)
	defer cancel()

	client, err := c.dial(ctx, t)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	session.Stdin = strings.NewReader(script)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	output, err := session.CombinedOutput("sh")
	close(done)

	if ctx.Err() != nil {
		return output, fmt.Errorf("remote session on %s aborted: %w", t.Host, ctx.Err())
	}
	if err != nil {
		return output, fmt.Errorf("remote routine on %s failed: %w", t.Host, err)
	}
	return output, nil
}

// CheckHost verifies that the target is dialable and authenticable without
// running anything. Used by the doctor command.
func (c *Client) CheckHost(ctx context.Context, t Target) error {
	client, err := c.dial(ctx, t)
	if err != nil {
		return err
	}
	return client.Close()
}
