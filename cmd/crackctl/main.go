// Command crackctl is the single entrypoint for every stage of the
// gravelpit pipeline: partitioning a raw hash universe, baseline
// filtering, chunk building, remote attack sequencing, result
// distribution, feedback, and a read-only status server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rawblock/gravelpit/internal/analyzer"
	"github.com/rawblock/gravelpit/internal/config"
	"github.com/rawblock/gravelpit/internal/distributor"
	"github.com/rawblock/gravelpit/internal/forensics"
	"github.com/rawblock/gravelpit/internal/lock"
	"github.com/rawblock/gravelpit/internal/orchestrator"
	"github.com/rawblock/gravelpit/internal/partition"
	"github.com/rawblock/gravelpit/internal/sequencer"
	"github.com/rawblock/gravelpit/internal/state"
	"github.com/rawblock/gravelpit/internal/statusapi"
	"github.com/rawblock/gravelpit/internal/worker"
	"github.com/rawblock/gravelpit/pkg/models"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <partition|filter|chunk|run|distribute|sequence|feedback|status|serve> [flags]", os.Args[0])
	}
	config.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "partition":
		err = runPartition(args)
	case "filter":
		err = runFilter(args)
	case "chunk":
		err = runChunk(args)
	case "run":
		err = runUniverse(args)
	case "distribute":
		err = runDistribute(args)
	case "sequence":
		err = runSequence(args)
	case "feedback":
		err = runFeedback(args)
	case "status":
		err = runStatus(args)
	case "serve":
		err = runServe(args)
	default:
		log.Fatalf("unknown subcommand %q", cmd)
	}
	if err != nil {
		log.Fatalf("[crackctl] %s: %v", cmd, err)
	}
}

func runPartition(args []string) error {
	var source, outDir string
	var batchSize int
	fs := newFlagSet("partition")
	fs.StringVar(&source, "source", "", "path to the raw hash list (one 40-hex SHA-1 per line); - for stdin")
	fs.StringVar(&outDir, "out", "", "output directory for batch-%04d.txt files")
	fs.IntVar(&batchSize, "batch-size", config.GetIntOrDefault("GRAVELPIT_BATCH_SIZE", 5000), "hashes per batch")
	fs.Parse(args)
	if source == "" || outDir == "" {
		return fmt.Errorf("both -source and -out are required")
	}

	r, err := openSource(source)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := partition.Partition(r, outDir, batchSize)
	if err != nil {
		return err
	}
	log.Printf("[Partitioner] wrote %d batches, %d hashes, rejected %d malformed lines",
		report.BatchesWritten, report.HashesWritten, report.LinesRejected)
	return nil
}

func runFilter(args []string) error {
	var batchPath, baselinePath, outPath string
	var batchID uint
	fs := newFlagSet("filter")
	fs.StringVar(&batchPath, "batch", "", "path to a batch-%04d.txt file")
	fs.UintVar(&batchID, "id", 0, "batch id")
	fs.StringVar(&baselinePath, "baseline", "", "path to the sorted baseline SHA-1 index")
	fs.StringVar(&outPath, "out", "", "sand file to write surviving candidates to")
	fs.Parse(args)
	if batchPath == "" || baselinePath == "" || outPath == "" {
		return fmt.Errorf("-batch, -baseline, and -out are required")
	}

	batch, skipped, err := partition.LoadGravelBatch(batchPath, uint32(batchID))
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Printf("[Partitioner] skipped %d malformed lines while loading %s", skipped, batchPath)
	}

	idx, err := partition.OpenBaselineIndex(baselinePath)
	if err != nil {
		return err
	}
	defer idx.Close()

	candidate, err := partition.FilterBatch(batch, idx)
	if err != nil {
		return err
	}
	if err := distributor.WriteSandFile(outPath, candidate.Hashes); err != nil {
		return err
	}
	log.Printf("[Partitioner] batch %04d: %d of %d hashes survived baseline filtering", batchID, len(candidate.Hashes), len(batch.Hashes))
	return nil
}

func runChunk(args []string) error {
	var batchDir, outPath string
	var chunkID uint
	var batchIDs string
	fs := newFlagSet("chunk")
	fs.StringVar(&batchDir, "sand-dir", "", "directory containing sand-%04d.txt files")
	fs.UintVar(&chunkID, "id", 0, "chunk id")
	fs.StringVar(&batchIDs, "batch-ids", "", "comma-separated batch ids to concatenate, in order")
	fs.StringVar(&outPath, "out", "", "chunk output path")
	fs.Parse(args)
	if batchDir == "" || batchIDs == "" || outPath == "" {
		return fmt.Errorf("-sand-dir, -batch-ids, and -out are required")
	}

	ids, err := parseUint32List(batchIDs)
	if err != nil {
		return err
	}

	candidates := make([]models.CandidateBatch, 0, len(ids))
	for _, id := range ids {
		sand, err := distributor.ReadSandFile(filepath.Join(batchDir, fmt.Sprintf("sand-%04d.txt", id)))
		if err != nil {
			return err
		}
		candidates = append(candidates, models.CandidateBatch{ID: id, Hashes: sand})
	}

	chunk, err := partition.BuildChunk(candidates, uint32(chunkID), outPath)
	if err != nil {
		return err
	}
	log.Printf("[Partitioner] chunk %04d: %d lines across %d batches written to %s", chunk.ID, chunk.LineCount, len(chunk.BatchIDs), chunk.Path)
	return nil
}

func runDistribute(args []string) error {
	var sandPath, potfilePath, crackedLogPath, outSandPath string
	var batchID uint
	fs := newFlagSet("distribute")
	fs.StringVar(&sandPath, "sand", "", "batch's current sand file")
	fs.UintVar(&batchID, "id", 0, "batch id")
	fs.StringVar(&potfilePath, "potfile", "", "hashcat-format potfile to reconcile against")
	fs.StringVar(&crackedLogPath, "cracked-log", config.GetOrDefault("GRAVELPIT_CRACKED_LOG", "cracked.jsonl"), "append-only cracked-record log")
	fs.StringVar(&outSandPath, "out-sand", "", "rewritten sand file with cracked hashes removed")
	fs.Parse(args)
	if sandPath == "" || potfilePath == "" || outSandPath == "" {
		return fmt.Errorf("-sand, -potfile, and -out-sand are required")
	}

	hashes, err := distributor.ReadSandFile(sandPath)
	if err != nil {
		return err
	}
	f, err := os.Open(potfilePath)
	if err != nil {
		return fmt.Errorf("opening potfile %s: %w", potfilePath, err)
	}
	potfile, malformed, err := distributor.ParsePotfile(f)
	f.Close()
	if err != nil {
		return err
	}
	if malformed > 0 {
		log.Printf("[Distributor] %d malformed potfile lines ignored", malformed)
	}

	batch := models.CandidateBatch{ID: uint32(batchID), Hashes: hashes}
	pearls, sand, err := distributor.Distribute(batch, potfile)
	if err != nil {
		return err
	}
	if err := distributor.AppendCracked(crackedLogPath, pearls); err != nil {
		return err
	}
	if err := distributor.WriteSandFile(outSandPath, sand); err != nil {
		return err
	}
	log.Printf("[Distributor] batch %04d: %d cracked, %d remain", batchID, len(pearls), len(sand))
	return nil
}

func runSequence(args []string) error {
	var batchID uint
	var hashlistPath, stateDir string
	fs := newFlagSet("sequence")
	fs.UintVar(&batchID, "id", 0, "batch id")
	fs.StringVar(&hashlistPath, "hashlist", "", "remote hashlist path the worker reads from")
	fs.StringVar(&stateDir, "state-dir", requiredStateDir(), "directory holding state.json and the run lock")
	fs.Parse(args)
	if hashlistPath == "" {
		return fmt.Errorf("-hashlist is required")
	}

	st, unlock, err := openLockedState(stateDir)
	if err != nil {
		return err
	}
	defer unlock()

	exec, closeExec, err := connectExecutor()
	if err != nil {
		return err
	}
	defer closeExec()

	registry := sequencer.NewRegistry(sequencer.DefaultAttackOrder(), sequencer.DefaultRecipes())
	assets := loadAssetMap()
	cfg := buildOrchestratorConfig(stateDir)
	d := orchestrator.New(cfg, st, registry, assets, exec, nil, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installAbortHandler(cancel, d)

	report, err := sequencer.Execute(
		ctx, uint32(batchID), hashlistPath, st, registry, exec,
		noopReconciler{}, assets, func(sessionName string) string {
			return filepath.Join(cfg.RemoteWorkDir, sessionName+".log")
		}, cfg.PollInterval, cfg.MaxWait,
	)
	if err != nil {
		return err
	}
	log.Printf("[Sequencer] batch %04d: ran %d attacks, aborted=%v", batchID, len(report.AttacksRun), report.Aborted)
	return nil
}

// noopReconciler satisfies sequencer.Reconciler for the standalone
// `sequence` subcommand, which does not mediate artifact reconciliation
// back through the Result Distributor — use `distribute` separately.
type noopReconciler struct{}

func (noopReconciler) ReconcileIncrement(batchID uint32, artifactPath string) (int, error) {
	return 0, nil
}

func runFeedback(args []string) error {
	var batchID uint
	var stateDir string
	fs := newFlagSet("feedback")
	fs.UintVar(&batchID, "id", 0, "batch id")
	fs.StringVar(&stateDir, "state-dir", requiredStateDir(), "directory holding state.json")
	fs.Parse(args)

	st, unlock, err := openLockedState(stateDir)
	if err != nil {
		return err
	}
	defer unlock()

	cohorts := analyzer.NewCohortRegistry(analyzer.DefaultCohortFingerprints())
	discover := analyzer.NewDiscoveryRegistry(analyzer.DefaultDiscoveryFingerprints())
	cfg := buildOrchestratorConfig(stateDir)
	d := orchestrator.New(cfg, st, sequencer.NewRegistry(nil, nil), nil, nil, nil, nil, cohorts, discover, nil, nil)

	return d.AnalyzeAndFeedback(uint32(batchID))
}

func runStatus(args []string) error {
	var stateDir string
	fs := newFlagSet("status")
	fs.StringVar(&stateDir, "state-dir", requiredStateDir(), "directory holding state.json")
	fs.Parse(args)

	st, err := state.Open(filepath.Join(stateDir, "state.json"))
	if err != nil {
		return err
	}
	doc := st.Snapshot()
	log.Printf("[Status] %d batches, last updated %s", len(doc.Batches), doc.LastUpdated.Format(time.RFC3339))
	for id, b := range doc.Batches {
		log.Printf("  batch %s: %d/%d cracked, status=%s, remaining=%v", id, b.Cracked, b.HashCount, b.Status, b.AttacksRemaining)
	}
	return nil
}

func runUniverse(args []string) error {
	var stateDir, batchDir string
	fs := newFlagSet("run")
	fs.StringVar(&stateDir, "state-dir", requiredStateDir(), "directory holding state.json, sand mirrors, and the run lock")
	fs.StringVar(&batchDir, "batch-dir", "", "directory of batch-%04d.txt files produced by partition")
	fs.Parse(args)
	if batchDir == "" {
		return fmt.Errorf("-batch-dir is required")
	}

	st, unlock, err := openLockedState(stateDir)
	if err != nil {
		return err
	}
	defer unlock()

	exec, closeExec, err := connectExecutor()
	if err != nil {
		return err
	}
	defer closeExec()

	var baseline *partition.BaselineIndex
	if p := os.Getenv("GRAVELPIT_BASELINE_INDEX"); p != "" {
		baseline, err = partition.OpenBaselineIndex(p)
		if err != nil {
			return err
		}
		defer baseline.Close()
	}

	bitmap, err := partition.OpenCompletionBitmap(filepath.Join(stateDir, "bitmap.json"))
	if err != nil {
		return err
	}

	registry := sequencer.NewRegistry(sequencer.DefaultAttackOrder(), sequencer.DefaultRecipes())
	cohorts := analyzer.NewCohortRegistry(analyzer.DefaultCohortFingerprints())
	discover := analyzer.NewDiscoveryRegistry(analyzer.DefaultDiscoveryFingerprints())
	assets := loadAssetMap()

	var hub *statusapi.Hub
	var fstore *forensics.Store
	if connStr := os.Getenv("GRAVELPIT_FORENSICS_DSN"); connStr != "" {
		ctx := context.Background()
		fstore, err = forensics.Connect(ctx, connStr)
		if err != nil {
			log.Printf("[crackctl] Warning: forensics store unavailable, continuing without it: %v", err)
			fstore = nil
		} else {
			defer fstore.Close()
			if err := fstore.InitSchema(ctx); err != nil {
				log.Printf("[crackctl] Warning: forensics schema init failed: %v", err)
			}
		}
	}

	cfg := buildOrchestratorConfig(stateDir)
	d := orchestrator.New(cfg, st, registry, assets, exec, baseline, bitmap, cohorts, discover, hub, fstore)

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return fmt.Errorf("reading batch dir %s: %w", batchDir, err)
	}
	var batches []orchestrator.BatchFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "batch-") {
			continue
		}
		id, err := batchIDFromFilename(entry.Name())
		if err != nil {
			log.Printf("[crackctl] skipping %s: %v", entry.Name(), err)
			continue
		}
		batches = append(batches, orchestrator.BatchFile{ID: id, Path: filepath.Join(batchDir, entry.Name())})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installAbortHandler(cancel, d)

	return d.RunUniverse(ctx, batches)
}

func runServe(args []string) error {
	var stateDir string
	fs := newFlagSet("serve")
	fs.StringVar(&stateDir, "state-dir", requiredStateDir(), "directory holding state.json")
	fs.Parse(args)

	st, err := state.Open(filepath.Join(stateDir, "state.json"))
	if err != nil {
		return err
	}

	hub := statusapi.NewHub()
	go hub.Run()

	r := statusapi.SetupRouter(st, hub)
	port := config.GetOrDefault("PORT", "5731")
	log.Printf("[crackctl] status server listening on :%s", port)
	return r.Run(":" + port)
}

// installAbortHandler wires SIGINT/SIGTERM to the orchestrator's
// cooperative abort flag, so the current batch finishes cleanly before
// the process exits instead of being killed mid-attack. A second signal
// cancels the run context.
func installAbortHandler(cancel context.CancelFunc, d *orchestrator.Driver) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[crackctl] received interrupt, requesting abort before next batch")
		d.RequestAbort()
		<-sigCh
		log.Println("[crackctl] received second interrupt, cancelling current batch")
		cancel()
	}()
}

func requiredStateDir() string {
	return config.GetOrDefault("GRAVELPIT_STATE_DIR", ".")
}

func openLockedState(stateDir string) (*state.Store, func(), error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating state dir %s: %w", stateDir, err)
	}
	runLock, err := lock.Acquire(filepath.Join(stateDir, "run.lock"))
	if err != nil {
		return nil, nil, err
	}
	st, err := state.Open(filepath.Join(stateDir, "state.json"))
	if err != nil {
		runLock.Release()
		return nil, nil, err
	}
	return st, func() { runLock.Release() }, nil
}

func connectExecutor() (*worker.Executor, func(), error) {
	host := config.RequireEnv("GRAVELPIT_SSH_HOST")
	user := config.RequireEnv("GRAVELPIT_SSH_USER")
	keyPath := config.RequireEnv("GRAVELPIT_SSH_KEY_PATH")

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading SSH private key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing SSH private key %s: %w", keyPath, err)
	}

	hostKeyCallback, err := hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}

	exec, err := worker.New(worker.Config{
		Host:              host,
		User:              user,
		Auth:              []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback:   hostKeyCallback,
		ProcessMarker:     config.GetOrDefault("GRAVELPIT_PROCESS_MARKER", "hashcat"),
		StartupGrace:      config.GetDurationOrDefault("GRAVELPIT_STARTUP_GRACE", 2*time.Second),
		ReconnectBaseWait: config.GetDurationOrDefault("GRAVELPIT_RECONNECT_BASE_WAIT", time.Second),
		ReconnectMaxWait:  config.GetDurationOrDefault("GRAVELPIT_RECONNECT_MAX_WAIT", 30*time.Second),
		ReconnectTotal:    config.GetDurationOrDefault("GRAVELPIT_RECONNECT_TOTAL", 5*time.Minute),
	})
	if err != nil {
		return nil, nil, err
	}
	return exec, func() { exec.Close() }, nil
}

// hostKeyCallback builds the SSH host-key verifier from
// GRAVELPIT_SSH_KNOWN_HOSTS, falling back to ssh.InsecureIgnoreHostKey
// only when GRAVELPIT_SSH_INSECURE=true is explicitly set — never silently.
func hostKeyCallback() (ssh.HostKeyCallback, error) {
	if config.GetBoolOrDefault("GRAVELPIT_SSH_INSECURE", false) {
		log.Println("[crackctl] WARNING: GRAVELPIT_SSH_INSECURE=true, skipping host key verification")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	knownHosts := config.RequireEnv("GRAVELPIT_SSH_KNOWN_HOSTS")
	return sshKnownHostsCallback(knownHosts)
}

func loadAssetMap() sequencer.AssetMap {
	assets := sequencer.AssetMap{
		sequencer.AssetBaseline:  config.GetOrDefault("GRAVELPIT_ASSET_BASELINE", "/assets/baseline.txt"),
		sequencer.AssetRockyou:   config.GetOrDefault("GRAVELPIT_ASSET_ROCKYOU", "/assets/rockyou.txt"),
		sequencer.AssetComposite: config.GetOrDefault("GRAVELPIT_ASSET_COMPOSITE", "/assets/composite.txt"),
		sequencer.AssetBestRules: config.GetOrDefault("GRAVELPIT_ASSET_BEST_RULES", "/assets/best64.rule"),
		sequencer.AssetMaskDigit: config.GetOrDefault("GRAVELPIT_ASSET_MASK_DIGIT", "/assets/digits-append.hcmask"),
	}
	return assets
}

func buildOrchestratorConfig(stateDir string) orchestrator.Config {
	return orchestrator.Config{
		WorkDir:                stateDir,
		RemoteWorkDir:          config.GetOrDefault("GRAVELPIT_REMOTE_WORK_DIR", "/tmp/gravelpit"),
		CrackedLogPath:         config.GetOrDefault("GRAVELPIT_CRACKED_LOG", filepath.Join(stateDir, "cracked.jsonl")),
		AccumulatedRootsPath:   config.GetOrDefault("GRAVELPIT_ACCUMULATED_ROOTS", filepath.Join(stateDir, "roots.txt")),
		CompositeWordlistPath:  config.GetOrDefault("GRAVELPIT_COMPOSITE_WORDLIST", filepath.Join(stateDir, "composite.txt")),
		CohortWordlistDir:      config.GetOrDefault("GRAVELPIT_COHORT_WORDLIST_DIR", stateDir),
		RulesPath:              config.GetOrDefault("GRAVELPIT_RULES_PATH", filepath.Join(stateDir, "generated.rule")),
		RecentYears:            recentYears(),
		MinPatternFrequency:    config.GetIntOrDefault("GRAVELPIT_MIN_PATTERN_FREQUENCY", 3),
		TopKSuffixes:           config.GetIntOrDefault("GRAVELPIT_TOP_K_SUFFIXES", 10),
		FeedbackAttackPrefixes: strings.Split(config.GetOrDefault("GRAVELPIT_FEEDBACK_ATTACK_PREFIXES", "baseline-,composite-"), ","),
		PollInterval:           config.GetDurationOrDefault("GRAVELPIT_POLL_INTERVAL", 15*time.Second),
		MaxWait:                config.GetDurationOrDefault("GRAVELPIT_MAX_WAIT", 6*time.Hour),
	}
}

func recentYears() []int {
	now := time.Now().Year()
	return []int{now, now - 1, now - 2}
}

func openSource(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

// sshKnownHostsCallback wraps golang.org/x/crypto/ssh/knownhosts against an
// OpenSSH-format known_hosts file, grounded on the same library the rest of
// the Remote Executor's SSH transport is built on.
func sshKnownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts file %s: %w", path, err)
	}
	return cb, nil
}

func parseUint32List(csv string) ([]uint32, error) {
	parts := strings.Split(csv, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid batch id %q: %w", p, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

func batchIDFromFilename(name string) (uint32, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "batch-"), ".txt")
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("filename %q does not match batch-%%04d.txt: %w", name, err)
	}
	return uint32(n), nil
}
