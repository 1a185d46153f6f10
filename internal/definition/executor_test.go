package definition

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecute_UndeclaredEnvVarsInvisible(t *testing.T) {
	t.Setenv("SECRET_HOST_VAR", "should_not_see_this")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := NewExecutor(t.TempDir()).Execute(ctx, `echo "VAR=${SECRET_HOST_VAR:-unset}"`, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	stdout := string(result.Stdout)
	if strings.Contains(stdout, "should_not_see_this") {
		t.Errorf("command observed undeclared host variable: %s", stdout)
	}
	if !strings.Contains(stdout, "VAR=unset") {
		t.Errorf("expected VAR=unset, got: %s", stdout)
	}
}

func TestExecute_OnlyDeclaredEnvVarsVisible(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := NewExecutor(t.TempDir()).Execute(ctx, `echo "FOO=$FOO BAR=$BAR"`, map[string]string{
		"FOO": "hello",
		"BAR": "world",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.TrimSpace(string(result.Stdout)); got != "FOO=hello BAR=world" {
		t.Errorf("unexpected stdout: %q", got)
	}
}

func TestExecute_NonZeroExitIsNotAnError(t *testing.T) {
	result, err := NewExecutor(t.TempDir()).Execute(context.Background(), "exit 7", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", result.ExitCode)
	}
}

func TestExecute_CancellationKillsCommand(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecutor(t.TempDir()).Execute(ctx, "sleep 10", map[string]string{"PATH": "/usr/bin:/bin"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("command was not killed promptly")
	}
}

func TestBuildIsolatedEnv_Sorted(t *testing.T) {
	got := buildIsolatedEnv(map[string]string{"B": "2", "A": "1"})
	if strings.Join(got, ",") != "A=1,B=2" {
		t.Errorf("unexpected env: %v", got)
	}
	if got := buildIsolatedEnv(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil env, got %#v", got)
	}
}
