//go:build e2e

package e2e

import (
	"os"
	"strings"
	"testing"
)

func setupHotCold(t *testing.T) (hot, cold string) {
	t.Helper()
	hot = t.TempDir()
	cold = t.TempDir()
	return hot, cold
}

func TestCheck_EmptyColdRootIsIntact(t *testing.T) {
	_, cold := setupHotCold(t)

	out, code := runCLI(t, "", "check", cold)
	if code != 0 {
		t.Fatalf("check exited %d, output:\n%s", code, out)
	}
	if !strings.Contains(out, "OK: Data is intact!") {
		t.Errorf("expected intact summary, got:\n%s", out)
	}
}

func TestCheck_StrayFileFailsWithExactMessage(t *testing.T) {
	_, cold := setupHotCold(t)
	writeFile(t, cold, "stray.txt", "not indexed\n")

	out, code := runCLI(t, "", "check", cold)
	if code == 0 {
		t.Fatalf("expected non-zero exit for stray file, output:\n%s", out)
	}
	if !strings.Contains(out, "Verification failed: 'stray.txt'.") {
		t.Errorf("expected exact stray failure message, got:\n%s", out)
	}
	if !strings.Contains(out, "FAIL: There were 1 failures!") {
		t.Errorf("expected failure summary, got:\n%s", out)
	}
}

func TestSync_AcceptingAllCopiesNewFilesToCold(t *testing.T) {
	hot, cold := setupHotCold(t)
	writeFile(t, hot, "a.txt", "hello\n")

	answers := "y\ny\n" // one per-change confirm, then the batch confirm
	out, code := runCLI(t, answers, "sync", hot, cold)
	if code != 0 {
		t.Fatalf("sync exited %d, output:\n%s", code, out)
	}

	if _, err := os.Stat(cold + "/a.txt"); err != nil {
		t.Errorf("expected a.txt copied to cold root: %v", err)
	}

	checkOut, checkCode := runCLI(t, "", "check", cold)
	if checkCode != 0 {
		t.Fatalf("check after sync exited %d, output:\n%s", checkCode, checkOut)
	}
	if !strings.Contains(checkOut, "OK: Data is intact!") {
		t.Errorf("expected intact after sync, got:\n%s", checkOut)
	}
}

func TestSync_DecliningLeavesColdRootUntouched(t *testing.T) {
	hot, cold := setupHotCold(t)
	writeFile(t, hot, "a.txt", "hello\n")

	out, code := runCLI(t, "n\n", "sync", hot, cold)
	if code != 0 {
		t.Fatalf("expected exit 0 when every change is declined, got %d, output:\n%s", code, out)
	}
	if _, err := os.Stat(cold + "/a.txt"); err == nil {
		t.Error("expected a.txt to not be copied when declined")
	}
}

func TestSync_MissingHotRootFailsWithUsageExit(t *testing.T) {
	_, cold := setupHotCold(t)

	out, code := runCLI(t, "", "sync", "/nonexistent-hot-dir-for-dintact-test", cold)
	if code != 2 {
		t.Fatalf("expected usage exit 2 for missing hot root, got %d, output:\n%s", code, out)
	}
	_ = out
}

func TestCheck_WrongArgCountPrintsUsage(t *testing.T) {
	out, code := runCLI(t, "", "check")
	if code == 0 {
		t.Fatalf("expected non-zero exit for missing argument, output:\n%s", out)
	}
	if !strings.Contains(out, "usage:") {
		t.Errorf("expected usage message, got:\n%s", out)
	}
}
