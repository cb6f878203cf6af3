// Package worker implements the Remote Executor: launching a cracking
// command inside a detached tmux session on a single GPU host over SSH,
// and reliably detecting completion across transport disconnects.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/rawblock/gravelpit/internal/failure"
)

// Status is the coarse state returned by Executor.Status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCompleted Status = "completed"
	StatusUnknown   Status = "unknown"
)

// Outcome is the result of a completed Run.
type Outcome struct {
	ExitStatus       string
	ProducedArtifact string
	DurationSeconds  float64
}

// Config parameterizes how an Executor reaches and supervises the remote
// worker host.
type Config struct {
	Host              string
	User              string
	Auth              []ssh.AuthMethod
	HostKeyCallback   ssh.HostKeyCallback
	ProcessMarker     string // substring pgrep -f matches against, e.g. "hashcat"
	StartupGrace      time.Duration
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	ReconnectTotal    time.Duration
}

// Executor supervises one remote GPU worker host over a reconnectable SSH
// connection.
type Executor struct {
	cfg    Config
	client *ssh.Client
	sftp   *sftp.Client
}

var logTerminalPattern = regexp.MustCompile(`(?m)^Status: (Exhausted|Cracked)\b`)
var progressLinePattern = regexp.MustCompile(`(?m)^Progress.*$`)

// New dials the remote host and establishes both the SSH session channel
// and the SFTP subsystem used for artifact inspection.
func New(cfg Config) (*Executor, error) {
	e := &Executor{cfg: cfg}
	if err := e.connect(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Executor) connect() error {
	clientCfg := &ssh.ClientConfig{
		User:            e.cfg.User,
		Auth:            e.cfg.Auth,
		HostKeyCallback: e.cfg.HostKeyCallback,
		Timeout:         15 * time.Second,
	}
	client, err := ssh.Dial("tcp", e.cfg.Host, clientCfg)
	if err != nil {
		return wrap(failure.ConnectionLost, fmt.Errorf("dialing %s: %w", e.cfg.Host, err))
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return wrap(failure.ConnectionLost, fmt.Errorf("opening sftp subsystem on %s: %w", e.cfg.Host, err))
	}
	e.client = client
	e.sftp = sftpClient
	return nil
}

// Close tears down the SSH and SFTP connections.
func (e *Executor) Close() error {
	if e.sftp != nil {
		e.sftp.Close()
	}
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// reconnect re-establishes the connection with bounded exponential backoff.
func (e *Executor) reconnect(ctx context.Context) error {
	base := e.cfg.ReconnectBaseWait
	if base <= 0 {
		base = time.Second
	}
	maxWait := e.cfg.ReconnectMaxWait
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	total := e.cfg.ReconnectTotal
	if total <= 0 {
		total = 5 * time.Minute
	}

	deadline := time.Now().Add(total)
	for attempt := 0; time.Now().Before(deadline); attempt++ {
		if e.client != nil {
			e.client.Close()
		}
		if err := e.connect(); err == nil {
			log.Printf("[Executor] Reconnected to %s after %d attempt(s)", e.cfg.Host, attempt+1)
			return nil
		}
		wait := time.Duration(math.Min(float64(maxWait), float64(base)*math.Pow(2, float64(attempt))))
		log.Printf("[Executor] Reconnect attempt %d to %s failed, retrying in %s", attempt+1, e.cfg.Host, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return wrap(failure.ConnectionLost, fmt.Errorf("could not reconnect to %s within %s", e.cfg.Host, total))
}

func (e *Executor) runSSHCommand(ctx context.Context, cmd string) (string, error) {
	session, err := e.client.NewSession()
	if err != nil {
		if reconErr := e.reconnect(ctx); reconErr != nil {
			return "", reconErr
		}
		session, err = e.client.NewSession()
		if err != nil {
			return "", wrap(failure.ConnectionLost, err)
		}
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	_ = session.Run(cmd)
	return out.String(), nil
}

// Run launches (or attaches to) the detached tmux session named
// sessionName running command, then polls the three completion signals
// every pollInterval until a terminal state is reached or maxWait elapses.
func (e *Executor) Run(ctx context.Context, sessionName, command string, logPath string, pollInterval, maxWait time.Duration) (Outcome, error) {
	alreadyRunning := e.sessionLiveness(ctx, sessionName)
	if !alreadyRunning {
		// hashcat exits 0 when every hash in the list was recovered and 1
		// when it exhausted the keyspace/wordlist without cracking
		// everything; the sentinel records which so logTerminality's regex
		// can tell the two terminal states apart without re-reading the
		// potfile.
		wrapped := fmt.Sprintf(
			`%s; rc=$?; if [ "$rc" -eq 0 ]; then echo "Status: Cracked" >> %s; else echo "Status: Exhausted (code=$rc)" >> %s; fi`,
			command, logPath, logPath,
		)
		launchCmd := fmt.Sprintf("tmux new-session -d -s %s '%s'", sessionName, wrapped)
		if _, err := e.runSSHCommand(ctx, launchCmd); err != nil {
			return Outcome{}, err
		}
		log.Printf("[Executor] Launched session %s on %s", sessionName, e.cfg.Host)

		grace := e.cfg.StartupGrace
		if grace <= 0 {
			grace = 2 * time.Second
		}
		time.Sleep(grace)

		procLive := e.processLiveness(ctx)
		sessLive := e.sessionLiveness(ctx, sessionName)
		logDone, _, _ := e.logTerminality(ctx, logPath)
		if !procLive && !sessLive && !logDone {
			tail, _ := e.tailLog(ctx, logPath, 4096)
			return Outcome{}, wrap(failure.LaunchFailed, fmt.Errorf("no liveness signal after startup grace for session %s; log tail:\n%s", sessionName, tail))
		}
	} else {
		log.Printf("[Executor] Session %s already exists on %s, resuming poll instead of relaunching", sessionName, e.cfg.Host)
	}

	start := time.Now()
	deadline := start.Add(maxWait)
	tentativeStops := 0

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-ticker.C:
		}

		if maxWait > 0 && time.Now().After(deadline) {
			return Outcome{}, wrap(failure.CompletionTimeout, fmt.Errorf("session %s did not complete within %s", sessionName, maxWait))
		}

		procLive := e.processLiveness(ctx)
		sessLive := e.sessionLiveness(ctx, sessionName)
		logDone, statusLine, err := e.logTerminality(ctx, logPath)
		if err != nil {
			if reconErr := e.reconnect(ctx); reconErr != nil {
				return Outcome{}, reconErr
			}
			continue
		}

		switch {
		case procLive || sessLive:
			tentativeStops = 0
			progress, _ := e.tailLog(ctx, logPath, 512)
			lastProgress := lastMatch(progressLinePattern, progress)
			size, _ := e.artifactSize(ctx, logPath)
			log.Printf("[Executor] %s in progress: elapsed=%s artifact-size=%d last-progress=%q",
				sessionName, time.Since(start).Round(time.Second), size, lastProgress)

		case logDone:
			duration := time.Since(start).Seconds()
			log.Printf("[Executor] %s completed: %s (%.1fs)", sessionName, statusLine, duration)
			return Outcome{
				ExitStatus:       statusLine,
				ProducedArtifact: logPath,
				DurationSeconds:  duration,
			}, nil

		default:
			tentativeStops++
			log.Printf("[Executor] %s shows no liveness signal (confirmation %d/2)", sessionName, tentativeStops)
			if tentativeStops >= 2 {
				tail, _ := e.tailLog(ctx, logPath, 4096)
				return Outcome{}, wrap(failure.UnexpectedStop, fmt.Errorf("session %s stopped without a terminal log marker; log tail:\n%s", sessionName, tail))
			}
		}
	}
}

// processLiveness reports whether any process matching the configured
// marker (e.g. "hashcat") is running on the remote host.
func (e *Executor) processLiveness(ctx context.Context) bool {
	out, err := e.runSSHCommand(ctx, fmt.Sprintf("pgrep -f %s", shellQuote(e.cfg.ProcessMarker)))
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// sessionLiveness reports whether the named tmux session still exists.
func (e *Executor) sessionLiveness(ctx context.Context, sessionName string) bool {
	out, err := e.runSSHCommand(ctx, fmt.Sprintf("tmux has-session -t %s 2>&1 && echo ALIVE", shellQuote(sessionName)))
	if err != nil {
		return false
	}
	return strings.Contains(out, "ALIVE")
}

// logTerminality reads the remote log over SFTP and checks for a
// `Status: Exhausted` or `Status: Cracked` marker.
func (e *Executor) logTerminality(ctx context.Context, logPath string) (bool, string, error) {
	f, err := e.sftp.Open(logPath)
	if err != nil {
		return false, "", wrap(failure.ConnectionLost, fmt.Errorf("opening remote log %s: %w", logPath, err))
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return false, "", wrap(failure.ConnectionLost, fmt.Errorf("reading remote log %s: %w", logPath, err))
	}

	match := logTerminalPattern.FindString(buf.String())
	if match == "" {
		return false, "", nil
	}
	return true, match, nil
}

func (e *Executor) tailLog(ctx context.Context, logPath string, maxBytes int64) (string, error) {
	f, err := e.sftp.Open(logPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := info.Size() - maxBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (e *Executor) artifactSize(ctx context.Context, path string) (int64, error) {
	info, err := e.sftp.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Status reports the coarse state of sessionName without running a full
// poll loop.
func (e *Executor) Status(ctx context.Context, sessionName, logPath string) Status {
	procLive := e.processLiveness(ctx)
	sessLive := e.sessionLiveness(ctx, sessionName)
	logDone, _, err := e.logTerminality(ctx, logPath)
	if err != nil {
		return StatusUnknown
	}
	switch {
	case logDone:
		return StatusCompleted
	case procLive || sessLive:
		return StatusRunning
	default:
		return StatusIdle
	}
}

// Upload copies localPath to remotePath over SFTP, writing to a sibling
// temp file on the remote host and renaming into place so the worker
// process never opens a partially-written hashlist. Used for the
// per-batch sand file the core manages directly; bulk assets (wordlists,
// rule files) are pre-positioned externally and never uploaded here.
func (e *Executor) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return failure.New(failure.SourceIO, fmt.Errorf("opening %s for upload: %w", localPath, err))
	}
	defer src.Close()

	remoteDir := path.Dir(remotePath)
	tmpPath := path.Join(remoteDir, fmt.Sprintf(".upload-%d.tmp", time.Now().UnixNano()))
	dst, err := e.sftp.Create(tmpPath)
	if err != nil {
		return wrap(failure.ConnectionLost, fmt.Errorf("creating remote temp file %s: %w", tmpPath, err))
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		e.sftp.Remove(tmpPath)
		return wrap(failure.ConnectionLost, fmt.Errorf("uploading %s to %s: %w", localPath, remotePath, err))
	}
	if err := dst.Close(); err != nil {
		e.sftp.Remove(tmpPath)
		return wrap(failure.ConnectionLost, err)
	}
	if err := e.sftp.Rename(tmpPath, remotePath); err != nil {
		e.sftp.Remove(tmpPath)
		return wrap(failure.ConnectionLost, fmt.Errorf("renaming %s to %s: %w", tmpPath, remotePath, err))
	}
	return nil
}

// Download copies a remote artifact (the attack's outfile/potfile) to
// localPath over SFTP, written to a temp file and renamed into place so a
// caller racing a partial transfer never observes a truncated file.
func (e *Executor) Download(ctx context.Context, remotePath, localPath string) error {
	src, err := e.sftp.Open(remotePath)
	if err != nil {
		return wrap(failure.ConnectionLost, fmt.Errorf("opening remote artifact %s: %w", remotePath, err))
	}
	defer src.Close()

	dir := filepath.Dir(localPath)
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return failure.New(failure.WriteIO, fmt.Errorf("creating temp file for %s: %w", localPath, err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return failure.New(failure.WriteIO, fmt.Errorf("downloading %s: %w", remotePath, err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return failure.New(failure.WriteIO, err)
	}
	if err := tmp.Close(); err != nil {
		return failure.New(failure.WriteIO, err)
	}
	return os.Rename(tmpPath, localPath)
}

// Kill terminates the named tmux session.
func (e *Executor) Kill(ctx context.Context, sessionName string) error {
	_, err := e.runSSHCommand(ctx, fmt.Sprintf("tmux kill-session -t %s", shellQuote(sessionName)))
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func lastMatch(re *regexp.Regexp, s string) string {
	matches := re.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

// parseExitCode pulls a trailing integer exit code out of a status line
// like "Status: Exhausted (code=1)", returning -1 if none is present.
func parseExitCode(statusLine string) int {
	idx := strings.LastIndex(statusLine, "code=")
	if idx == -1 {
		return -1
	}
	rest := strings.TrimSuffix(statusLine[idx+len("code="):], ")")
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return -1
	}
	return n
}
