package sequencer

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/internal/worker"
	"github.com/rawblock/gravelpit/pkg/models"
)

type fakeStore struct {
	batch          *models.BatchState
	applied        map[string]bool
	startCalls     []string
	completeCalls  []string
}

func newFakeStore(remaining []string) *fakeStore {
	return &fakeStore{
		batch:   &models.BatchState{AttacksRemaining: remaining},
		applied: make(map[string]bool),
	}
}

func (f *fakeStore) Get(batchID uint32) *models.BatchState { return f.batch }
func (f *fakeStore) IsAttackApplied(batchID uint32, name string) bool { return f.applied[name] }
func (f *fakeStore) StartAttack(batchID uint32, name, ref string) error {
	f.startCalls = append(f.startCalls, name)
	return nil
}
func (f *fakeStore) CompleteAttack(batchID uint32, name string, newCracks int, duration float64) error {
	f.applied[name] = true
	f.completeCalls = append(f.completeCalls, name)
	return nil
}

type fakeExecutor struct {
	outcomes map[string]worker.Outcome
	errs     map[string]error
	calls    []string
}

func (f *fakeExecutor) Run(ctx context.Context, sessionName, command, logPath string, pollInterval, maxWait time.Duration) (worker.Outcome, error) {
	f.calls = append(f.calls, sessionName)
	if err, ok := f.errs[sessionName]; ok {
		return worker.Outcome{}, err
	}
	return f.outcomes[sessionName], nil
}

type fakeReconciler struct{ cracks int }

func (f *fakeReconciler) ReconcileIncrement(batchID uint32, artifact string) (int, error) {
	return f.cracks, nil
}

func testRegistry() *Registry {
	return NewRegistry([]string{"dict-rockyou", "mask-d8"}, []models.AttackRecipe{
		{Name: "dict-rockyou", CommandTemplate: "hashcat -a 0 " + models.HashlistToken + " rockyou.txt", AssetIDs: []string{"rockyou.txt"}},
		{Name: "mask-d8", CommandTemplate: "hashcat -a 3 " + models.HashlistToken + " ?d?d?d?d?d?d?d?d"},
	})
}

func testAssets() AssetMap {
	return AssetMap{"rockyou.txt": "/remote/wordlists/rockyou.txt"}
}

func logPath(session string) string { return "/remote/logs/" + session + ".log" }

func TestExecuteReportsNoOpWhenNothingRemains(t *testing.T) {
	store := newFakeStore(nil)
	exec := &fakeExecutor{}
	report, err := Execute(context.Background(), 1, "/remote/batch-0001.txt", store, testRegistry(), exec, &fakeReconciler{}, testAssets(), logPath, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !report.NoOp {
		t.Fatal("expected NoOp report when attacksRemaining is empty")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("executor should not be called, got %v", exec.calls)
	}
}

func TestExecuteSkipsAlreadyAppliedAttacks(t *testing.T) {
	store := newFakeStore([]string{"dict-rockyou", "mask-d8"})
	store.applied["dict-rockyou"] = true
	exec := &fakeExecutor{outcomes: map[string]worker.Outcome{
		"gravelpit-0002-mask-d8": {ProducedArtifact: "/remote/logs/gravelpit-0002-mask-d8.log", DurationSeconds: 5},
	}}

	report, err := Execute(context.Background(), 2, "/remote/batch-0002.txt", store, testRegistry(), exec, &fakeReconciler{cracks: 3}, testAssets(), logPath, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "gravelpit-0002-mask-d8" {
		t.Fatalf("exec.calls = %v, want only mask-d8 session", exec.calls)
	}
	if len(report.AttacksRun) != 1 || report.AttacksRun[0] != "mask-d8" {
		t.Fatalf("AttacksRun = %v, want [mask-d8]", report.AttacksRun)
	}
}

func TestExecuteAbortsBatchOnLaunchFailed(t *testing.T) {
	store := newFakeStore([]string{"dict-rockyou", "mask-d8"})
	exec := &fakeExecutor{errs: map[string]error{
		"gravelpit-0003-dict-rockyou": failure.New(failure.LaunchFailed, context.DeadlineExceeded),
	}}

	report, err := Execute(context.Background(), 3, "/remote/batch-0003.txt", store, testRegistry(), exec, &fakeReconciler{}, testAssets(), logPath, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !report.Aborted {
		t.Fatal("expected batch to abort on LaunchFailed")
	}
	if len(exec.calls) != 1 {
		t.Fatalf("second attack should not run after abort, got calls=%v", exec.calls)
	}
}

func TestExecuteRecordsAndContinuesOnOtherFailures(t *testing.T) {
	cases := []struct {
		name string
		kind failure.Kind
	}{
		{name: "CompletionTimeout", kind: failure.CompletionTimeout},
		{name: "ConnectionLost", kind: failure.ConnectionLost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore([]string{"dict-rockyou", "mask-d8"})
			exec := &fakeExecutor{
				errs: map[string]error{
					"gravelpit-0004-dict-rockyou": failure.New(tc.kind, context.DeadlineExceeded),
				},
				outcomes: map[string]worker.Outcome{
					"gravelpit-0004-mask-d8": {ProducedArtifact: "/remote/logs/gravelpit-0004-mask-d8.log", DurationSeconds: 2},
				},
			}

			report, err := Execute(context.Background(), 4, "/remote/batch-0004.txt", store, testRegistry(), exec, &fakeReconciler{cracks: 1}, testAssets(), logPath, time.Millisecond, time.Second)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if report.Aborted {
				t.Fatalf("%s on one attack should not abort the batch", tc.name)
			}
			if len(exec.calls) != 2 {
				t.Fatalf("expected both attacks attempted, got %v", exec.calls)
			}
			if len(report.AttacksRun) != 1 || report.AttacksRun[0] != "mask-d8" {
				t.Fatalf("AttacksRun = %v, want [mask-d8]", report.AttacksRun)
			}
		})
	}
}

func TestExecuteZeroNewCracksStillCompletesAttack(t *testing.T) {
	store := newFakeStore([]string{"dict-rockyou"})
	exec := &fakeExecutor{outcomes: map[string]worker.Outcome{
		"gravelpit-0005-dict-rockyou": {ProducedArtifact: "/remote/logs/gravelpit-0005-dict-rockyou.log", DurationSeconds: 3},
	}}

	report, err := Execute(context.Background(), 5, "/remote/batch-0005.txt", store, testRegistry(), exec, &fakeReconciler{cracks: 0}, testAssets(), logPath, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(report.AttacksRun) != 1 {
		t.Fatalf("zero-yield attack should still be recorded as run: %v", report.AttacksRun)
	}
	if len(store.completeCalls) != 1 {
		t.Fatalf("CompleteAttack should be called even with zero new cracks")
	}
}

func TestCrackRateFallsBackToExpectedYield(t *testing.T) {
	registry := NewRegistry(nil, []models.AttackRecipe{
		{Name: "cold-start", ExpectedYieldRate: 42.0},
	})
	rank := CrackRate(func() map[string]AttackStats { return map[string]AttackStats{} }, registry)
	if got := rank("cold-start"); got != 42.0 {
		t.Fatalf("CrackRate fallback = %v, want 42.0", got)
	}
}

func TestCrackRateUsesObservedWhenAvailable(t *testing.T) {
	registry := NewRegistry(nil, []models.AttackRecipe{{Name: "dict-rockyou", ExpectedYieldRate: 1}})
	stats := map[string]AttackStats{"dict-rockyou": {TotalNewCracks: 100, TotalDuration: 10}}
	rank := CrackRate(func() map[string]AttackStats { return stats }, registry)
	if got := rank("dict-rockyou"); got != 10.0 {
		t.Fatalf("CrackRate observed = %v, want 10.0", got)
	}
}
