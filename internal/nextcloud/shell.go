package nextcloud

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// ShellTransport executes operations as occ commands over an authenticated
// SSH session. One live connection is kept per transport and reconnected
// transparently when it dies; calls are serialized with a mutex because an
// SSH connection is not safe for concurrent command execution here.
type ShellTransport struct {
	addr      string
	user      string
	signer    ssh.Signer
	container string

	mu     sync.Mutex
	client *ssh.Client
}

// ShellConfig carries the per-instance SSH settings.
type ShellConfig struct {
	Host          string
	Port          int
	User          string
	PrivateKeyPEM string
	ContainerName string
}

// NewShellTransport parses the private key and returns a transport. A
// missing or unparsable key is a fatal configuration error, never retried.
func NewShellTransport(cfg ShellConfig) (*ShellTransport, error) {
	if cfg.PrivateKeyPEM == "" {
		return nil, &ConfigError{Reason: "no SSH private key configured for this instance"}
	}
	signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse SSH private key: %v", err)}
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	return &ShellTransport{
		addr:      net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port)),
		user:      cfg.User,
		signer:    signer,
		container: cfg.ContainerName,
	}, nil
}

func (t *ShellTransport) Execute(ctx context.Context, cmd Command) (string, error) {
	remote, err := t.buildCommand(cmd)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := t.run(ctx, cmd.Op, remote)
	if err != nil {
		// A dead session surfaces as an unreachable error. Drop the
		// connection so the next call redials.
		if _, ok := err.(*UnreachableError); ok {
			t.closeLocked()
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// run executes one remote command on the live connection, dialing first if
// needed. The context bounds both the dial and the command.
func (t *ShellTransport) run(ctx context.Context, op Operation, remote string) (string, error) {
	client, err := t.connectLocked(ctx, op)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", &UnreachableError{Op: op, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(remote) }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", &UnreachableError{Op: op, Err: ctx.Err()}
	case err = <-done:
	}

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return "", &CommandError{
				Op:         op,
				ExitStatus: exitErr.ExitStatus(),
				Stdout:     stdout.String(),
				Stderr:     stderr.String(),
			}
		}
		return "", &UnreachableError{Op: op, Err: err}
	}
	return stdout.String(), nil
}

func (t *ShellTransport) connectLocked(ctx context.Context, op Operation) (*ssh.Client, error) {
	if t.client != nil {
		return t.client, nil
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, &UnreachableError{Op: op, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.addr, &ssh.ClientConfig{
		User:            t.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	})
	if err != nil {
		conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &AuthError{Cause: err.Error()}
		}
		return nil, &UnreachableError{Op: op, Err: err}
	}

	t.client = ssh.NewClient(sshConn, chans, reqs)
	return t.client, nil
}

func (t *ShellTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *ShellTransport) closeLocked() {
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

// occCommands maps operations onto occ subcommands. Operations with special
// shapes (create_user, metric probes, test_connection) are handled in
// buildCommand directly.
var occCommands = map[Operation]struct {
	sub      string
	jsonOut  bool
	trailing []string
}{
	OpDeleteUser:      {sub: "user:delete"},
	OpCreateGroup:     {sub: "group:add"},
	OpDeleteGroup:     {sub: "group:delete"},
	OpSetGroupQuota:   {sub: "group:set-quota"},
	OpListUsers:       {sub: "user:list", jsonOut: true},
	OpListGroups:      {sub: "group:list", jsonOut: true},
	OpUserInfo:        {sub: "user:info"},
	OpLastSeen:        {sub: "user:lastseen"},
	OpResendWelcome:   {sub: "user:resetpassword", trailing: []string{"--send-email"}},
	OpListApps:        {sub: "app:list", jsonOut: true},
}

func (t *ShellTransport) buildCommand(cmd Command) (string, error) {
	switch cmd.Op {
	case OpCreateUser:
		if len(cmd.Args) != 4 {
			return "", fmt.Errorf("nextcloud: create_user wants 4 args, got %d", len(cmd.Args))
		}
		userID, displayName, email, password := cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3]
		// The password travels via the container environment, never on
		// the occ argument list.
		return fmt.Sprintf(
			"docker exec -e OC_PASS=%s -u 33 %s php occ user:add --password-from-env --display-name=%s --email=%s %s",
			shellQuote(password), shellQuote(t.container),
			shellQuote(displayName), shellQuote(email), shellQuote(userID),
		), nil

	case OpAddToGroup:
		if len(cmd.Args) != 2 {
			return "", fmt.Errorf("nextcloud: add_to_group wants 2 args, got %d", len(cmd.Args))
		}
		return t.occ("group:adduser", []string{cmd.Args[1], cmd.Args[0]}), nil

	case OpRemoveFromGroup:
		if len(cmd.Args) != 2 {
			return "", fmt.Errorf("nextcloud: remove_from_group wants 2 args, got %d", len(cmd.Args))
		}
		return t.occ("group:removeuser", []string{cmd.Args[1], cmd.Args[0]}), nil

	case OpSetQuota:
		if len(cmd.Args) != 2 {
			return "", fmt.Errorf("nextcloud: set_quota wants 2 args, got %d", len(cmd.Args))
		}
		return t.occ("user:setting", []string{cmd.Args[0], "files", "quota", cmd.Args[1]}), nil

	case OpTestConnection:
		return `echo test`, nil

	case OpDiskUsage:
		return fmt.Sprintf("docker exec %s df -h /var/www/html/data | tail -1", shellQuote(t.container)), nil

	case OpCPUStats:
		return fmt.Sprintf("docker stats %s --no-stream --format '{{.CPUPerc}}'", shellQuote(t.container)), nil

	case OpMemStats:
		return fmt.Sprintf("docker stats %s --no-stream --format '{{.MemPerc}}'", shellQuote(t.container)), nil
	}

	spec, ok := occCommands[cmd.Op]
	if !ok {
		return "", fmt.Errorf("nextcloud: unknown operation %q", cmd.Op)
	}
	flags := append([]string{}, spec.trailing...)
	if spec.jsonOut {
		flags = append(flags, "--output=json")
	}
	return t.occ(spec.sub, cmd.Args, flags...), nil
}

// occ assembles a `docker exec ... php occ` invocation. Every caller-supplied
// argument is shell-quoted, including ones that happen to start with "--";
// only the fixed flags from the command table are appended verbatim.
func (t *ShellTransport) occ(sub string, args []string, flags ...string) string {
	parts := []string{fmt.Sprintf("docker exec -u 33 %s php occ %s", shellQuote(t.container), sub)}
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	parts = append(parts, flags...)
	return strings.Join(parts, " ")
}

// shellQuote wraps s in single quotes, escaping embedded single quotes, so
// arbitrary display names and emails cannot break out of the remote command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
