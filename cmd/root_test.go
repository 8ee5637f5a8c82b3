package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxfleet/internal/accounts"
	"github.com/teemow/inboxfleet/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("INBOXFLEET_PASSWORD_CLIPBOARD", "false")

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func seedAccount(t *testing.T, dir, email string) {
	t.Helper()
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}
	if _, err := accounts.NewRegistry(dir).Add(email, token); err != nil {
		t.Fatalf("seeding %s: %v", email, err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "inboxfleet version dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestListEmptyStore(t *testing.T) {
	dir := t.TempDir()

	for _, args := range [][]string{
		{"--store-dir", dir, "list"},
		{"--store-dir", dir, "--list"},
	} {
		out, err := execute(t, args...)
		if err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		if !strings.Contains(out, "No accounts registered yet.") {
			t.Errorf("%v: unexpected output %q", args, out)
		}
	}
}

func TestListJSON(t *testing.T) {
	dir := t.TempDir()
	seedAccount(t, dir, "a@gmail.com")
	seedAccount(t, dir, "b@gmail.com")

	out, err := execute(t, "--store-dir", dir, "list", "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var got []struct {
		Index int    `json:"index"`
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 2 || got[0].Email != "a@gmail.com" || got[1].Index != 2 || got[1].Token != "valid" {
		t.Errorf("unexpected accounts %+v", got)
	}
}

func TestRemoveWithYes(t *testing.T) {
	dir := t.TempDir()
	seedAccount(t, dir, "a@gmail.com")

	out, err := execute(t, "--store-dir", dir, "remove", "--yes", "A@gmail.com")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !strings.Contains(out, "Removed a@gmail.com") {
		t.Errorf("unexpected output %q", out)
	}

	list, err := accounts.NewRegistry(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("account still registered: %+v", list)
	}
}

func TestRemoveUnknownFails(t *testing.T) {
	_, err := execute(t, "--store-dir", t.TempDir(), "--remove", "ghost@gmail.com")
	if err == nil {
		t.Fatal("expected an error for an unknown account")
	}
}

func TestSendTestWithoutAccounts(t *testing.T) {
	out, err := execute(t, "--store-dir", t.TempDir(), "send-test", "x@y.com", "--parallel", "4")
	if err != nil {
		t.Fatalf("send-test failed: %v", err)
	}
	if !strings.Contains(out, "No accounts registered") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestChangePasswordNoBrowser(t *testing.T) {
	dir := t.TempDir()
	seedAccount(t, dir, "a@gmail.com")

	out, err := execute(t, "--store-dir", dir, "change-password", "1", "--no-browser")
	if err != nil {
		t.Fatalf("change-password failed: %v", err)
	}
	if !strings.Contains(out, "Generated password for a@gmail.com") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "clipboard") {
		t.Errorf("clipboard used although disabled: %q", out)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	seedAccount(t, dir, "a@gmail.com")

	if _, err := execute(t, "--store-dir", dir, "check"); err != nil {
		t.Fatalf("check of a consistent store failed: %v", err)
	}

	orphans := accounts.NewTokenStore(dir)
	if err := orphans.Save("orphan@gmail.com", &oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--store-dir", dir, "--check"); err == nil {
		t.Error("expected check to fail with an orphaned token file")
	}
}

func TestLegacyFlagsAreExclusive(t *testing.T) {
	if _, err := execute(t, "--store-dir", t.TempDir(), "--list", "--check"); err == nil {
		t.Error("expected an error when combining --list and --check")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	if _, err := execute(t, "--store-dir", t.TempDir(), "--log-level", "loud", "list"); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestMenuEndsOnEOF(t *testing.T) {
	out, err := execute(t, "--store-dir", t.TempDir())
	if err != nil {
		t.Fatalf("menu failed: %v", err)
	}
	if !strings.Contains(out, "Choose an option") {
		t.Errorf("menu not shown: %q", out)
	}
}

func TestOverrides(t *testing.T) {
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--store-dir", "/tmp/s", "--credentials", "c.json"}); err != nil {
		t.Fatal(err)
	}

	opts := &globalOptions{storeDir: "/tmp/s", credentials: "c.json"}
	got := opts.overrides(root)

	if len(got) != 2 || got[config.KeyStoreDir] != "/tmp/s" || got[config.KeyCredentialsFile] != "c.json" {
		t.Errorf("unexpected overrides %v", got)
	}
}
