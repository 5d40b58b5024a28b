package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/emr/console/internal/config"
	"github.com/emr/console/internal/platform/audit"
	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/internal/platform/transport/transporttest"
)

func testApp(b *transporttest.Backend) *app {
	return &app{
		loadConfig: func() (*config.Config, error) {
			return &config.Config{
				Env:            "test",
				BackendURL:     "http://backend.test",
				BackendTimeout: time.Second,
				DefaultPerPage: 2,
			}, nil
		},
		gateway: func(*config.Config, zerolog.Logger) (transport.Gateway, error) {
			return b, nil
		},
		journal: func(context.Context, *config.Config) (audit.Store, *pgxpool.Pool, error) {
			return audit.NewMemoryStore(0), nil, nil
		},
	}
}

// withJournal makes every command of a share store as its audit journal.
func withJournal(a *app, store *audit.MemoryStore) *app {
	a.journal = func(context.Context, *config.Config) (audit.Store, *pgxpool.Pool, error) {
		return store, nil, nil
	}
	return a
}

func run(a *app, stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func seedPatients() *transporttest.Backend {
	b := transporttest.NewBackend()
	b.Seed("/patients",
		map[string]any{"name": "Amina Yusuf", "phone": "0700000001", "gender": "female", "status": "active"},
		map[string]any{"name": "Brian Otieno", "phone": "0700000002", "gender": "male", "status": "active"},
		map[string]any{"name": "Carol Wanjiru", "phone": "0700000003", "gender": "female", "status": "inactive"},
	)
	return b
}

func TestList_PrintsTable(t *testing.T) {
	b := seedPatients()
	out, _, err := run(testApp(b), "", "list", "patients")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Amina Yusuf") || !strings.Contains(out, "Brian Otieno") {
		t.Errorf("expected first page rows, got:\n%s", out)
	}
	if strings.Contains(out, "Carol Wanjiru") {
		t.Error("expected the configured page size to apply")
	}
	if !strings.Contains(out, "Page 1 of 2, 3 total") {
		t.Errorf("expected pager line, got:\n%s", out)
	}
	if got := b.Calls()[0].Opts.Query.Get("per_page"); got != "2" {
		t.Errorf("expected per_page 2, got %s", got)
	}
}

func TestList_FlagsBecomeWireParams(t *testing.T) {
	b := seedPatients()
	out, _, err := run(testApp(b), "", "list", "patients", "--page", "0", "--search", "wanjiru", "--filter", "status=inactive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := b.Calls()[0].Opts.Query
	if q.Get("page") != "1" || q.Get("search") != "wanjiru" || q.Get("status") != "inactive" {
		t.Errorf("unexpected wire params: %v", q)
	}
	if !strings.Contains(out, "Carol Wanjiru") {
		t.Errorf("expected the matching patient, got:\n%s", out)
	}
}

func TestList_Errors(t *testing.T) {
	b := seedPatients()
	if _, _, err := run(testApp(b), "", "list", "nurses"); err == nil || !strings.Contains(err.Error(), "unknown resource") {
		t.Errorf("expected unknown resource error, got %v", err)
	}
	if _, _, err := run(testApp(b), "", "list", "patients", "--filter", "status"); err == nil {
		t.Error("expected an error for a malformed filter")
	}

	b.Fail(http.MethodGet, "/patients", &transport.ApplicationError{Status: http.StatusServiceUnavailable, Message: "Maintenance window"})
	_, stderr, err := run(testApp(b), "", "list", "patients")
	if err == nil {
		t.Fatal("expected the fetch error")
	}
	if !strings.Contains(stderr, "error: Maintenance window") {
		t.Errorf("expected the toast on stderr, got %q", stderr)
	}
}

func TestList_Empty(t *testing.T) {
	out, _, err := run(testApp(transporttest.NewBackend()), "", "list", "medicines")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "No medicines found." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDelete_AsksFirst(t *testing.T) {
	b := seedPatients()

	out, _, err := run(testApp(b), "n\n", "delete", "patients", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Delete patient 1? [y/N]") || !strings.Contains(out, "Cancelled.") {
		t.Errorf("unexpected output %q", out)
	}
	if b.Count(http.MethodDelete) != 0 {
		t.Fatal("expected no delete when the prompt is declined")
	}

	_, stderr, err := run(testApp(b), "y\n", "delete", "patients", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "success: Patient deleted") {
		t.Errorf("expected success toast, got %q", stderr)
	}
	if len(b.Records("/patients")) != 2 {
		t.Error("expected the record to be deleted")
	}
}

func TestDelete_YesSkipsPrompt(t *testing.T) {
	b := seedPatients()
	out, _, err := run(testApp(b), "", "delete", "patients", "2", "--yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "[y/N]") {
		t.Error("expected no prompt with --yes")
	}
	if b.Count(http.MethodDelete) != 1 {
		t.Errorf("expected one delete, got %d", b.Count(http.MethodDelete))
	}

	_, _, err = run(testApp(b), "", "delete", "patients", "99", "--yes")
	if err == nil {
		t.Fatal("expected an error for a missing record")
	}
}

func TestResources(t *testing.T) {
	out, _, err := run(testApp(nil), "", "resources")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"SLUG", "patients", "/lab-tests", "medical-certificates", "form,in_stock"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	_, _, err := run(testApp(nil), "", "migrate", "status")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected a DATABASE_URL error, got %v", err)
	}
}

func TestNewGateway(t *testing.T) {
	cfg := &config.Config{BackendURL: "http://backend.test", BackendTimeout: time.Second, BackendJWTSecret: "short"}
	if _, err := newGateway(cfg, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.BackendJWTSecret = ""
	cfg.BackendToken = "static"
	gw, err := newGateway(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gw.(*transport.Client); !ok {
		t.Errorf("expected a *transport.Client, got %T", gw)
	}
}

func TestSeed(t *testing.T) {
	b := transporttest.NewBackend()
	out, stderr, err := run(testApp(b), "", "seed", "patients", "medicines", "--count", "3", "--seed", "11")
	if err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, stderr)
	}
	if !strings.Contains(out, "patients: 3 created, 0 failed") || !strings.Contains(out, "medicines: 3 created, 0 failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if len(b.Records("/patients")) != 3 || len(b.Records("/medicines")) != 3 {
		t.Error("expected the records to reach the backend")
	}
	if !strings.Contains(stderr, "success: Patient created") {
		t.Errorf("expected create toasts on stderr, got %q", stderr)
	}

	if _, _, err := run(testApp(b), "", "seed", "payments"); err == nil {
		t.Error("expected an error for a resource without demo data")
	}
	if _, _, err := run(testApp(b), "", "seed", "--count", "0"); err == nil {
		t.Error("expected an error for a non-positive count")
	}
}

func TestDelete_JournalsOutcome(t *testing.T) {
	b := seedPatients()
	store := audit.NewMemoryStore(0)

	if _, _, err := run(withJournal(testApp(b), store), "", "delete", "patients", "2", "--yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Fail(http.MethodDelete, "/patients/3", &transport.ApplicationError{Status: http.StatusConflict, Message: "Patient has open invoices"})
	if _, _, err := run(withJournal(testApp(b), store), "", "delete", "patients", "3", "--yes"); err == nil {
		t.Fatal("expected the backend refusal")
	}

	entries, total, err := store.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 journaled outcomes, got %d", total)
	}
	outcomes := map[string]audit.Outcome{}
	for _, e := range entries {
		if e.Resource != "Patient" || e.Kind != "delete" {
			t.Errorf("unexpected entry %+v", e)
		}
		outcomes[e.RecordID] = e.Outcome
	}
	if outcomes["2"] != audit.OutcomeSucceeded || outcomes["3"] != audit.OutcomeFailed {
		t.Errorf("unexpected outcomes %v", outcomes)
	}
}

func TestSeed_JournalsCreates(t *testing.T) {
	store := audit.NewMemoryStore(0)
	if _, _, err := run(withJournal(testApp(transporttest.NewBackend()), store), "", "seed", "medicines", "--count", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, total, _ := store.List(context.Background(), 10, 0)
	if total != 2 {
		t.Errorf("expected 2 journaled creates, got %d", total)
	}
}

func TestOpen_JournalError(t *testing.T) {
	a := testApp(seedPatients())
	a.journal = func(context.Context, *config.Config) (audit.Store, *pgxpool.Pool, error) {
		return nil, nil, errors.New("connect audit database: refused")
	}
	_, _, err := run(a, "", "delete", "patients", "1", "--yes")
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected the journal error, got %v", err)
	}
}
