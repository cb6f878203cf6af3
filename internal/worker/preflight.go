package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rawblock/gravelpit/internal/failure"
)

// PreflightConfig names what to check before a Run is allowed to launch.
type PreflightConfig struct {
	HashlistPath    string
	AssetPaths      []string
	MinAssetBytes   int64
	MinDiskHeadroom int64 // bytes, checked via `df` on the remote filesystem holding HashlistPath
}

// Preflight runs the four checks specified for launch: hashlist present
// and non-empty, every asset present and above the corruption-guard size
// threshold, no other cracking process already running, and enough disk
// headroom remote-side.
func (e *Executor) Preflight(ctx context.Context, cfg PreflightConfig) error {
	info, err := e.sftp.Stat(cfg.HashlistPath)
	if err != nil {
		return wrap(failure.PreflightFailed, fmt.Errorf("hashlist %s not found on remote: %w", cfg.HashlistPath, err))
	}
	if info.Size() == 0 {
		return wrap(failure.PreflightFailed, fmt.Errorf("hashlist %s is empty", cfg.HashlistPath))
	}

	for _, asset := range cfg.AssetPaths {
		ai, err := e.sftp.Stat(asset)
		if err != nil {
			return wrap(failure.PreflightFailed, fmt.Errorf("asset %s not found on remote: %w", asset, err))
		}
		if ai.Size() < cfg.MinAssetBytes {
			return wrap(failure.PreflightFailed, fmt.Errorf("asset %s is %d bytes, below the %d-byte corruption guard", asset, ai.Size(), cfg.MinAssetBytes))
		}
	}

	if e.processLiveness(ctx) {
		return wrap(failure.PreflightFailed, fmt.Errorf("a %s process is already running on %s", e.cfg.ProcessMarker, e.cfg.Host))
	}

	if cfg.MinDiskHeadroom > 0 {
		headroom, err := e.diskHeadroom(ctx, cfg.HashlistPath)
		if err != nil {
			return wrap(failure.PreflightFailed, fmt.Errorf("checking disk headroom on %s: %w", e.cfg.Host, err))
		}
		if headroom < cfg.MinDiskHeadroom {
			return wrap(failure.PreflightFailed, fmt.Errorf("only %d bytes free on %s, need at least %d", headroom, e.cfg.Host, cfg.MinDiskHeadroom))
		}
	}

	return nil
}

// diskHeadroom parses `df -B1 --output=avail <path>` on the remote host.
func (e *Executor) diskHeadroom(ctx context.Context, path string) (int64, error) {
	out, err := e.runSSHCommand(ctx, fmt.Sprintf("df -B1 --output=avail %s | tail -1", shellQuote(path)))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing df output %q: %w", out, err)
	}
	return n, nil
}
