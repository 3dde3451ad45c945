//go:build !windows

package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/models"
)

func testAppSpec(name, friendly, dir string) models.AppSpec {
	return models.AppSpec{
		Name:        name,
		Friendly:    friendly,
		Scope:       "game",
		Directory:   dir,
		Command:     "sh",
		Args:        []string{"-c", ": " + name + "-marker; sleep 30"},
		ProcessName: "sh",
		ProcessCmd:  []string{name + "-marker"},
		Adapter:     "plain",
		Protocol:    "none",
		Enabled:     true,
	}
}

func newTestManager(t *testing.T, specs ...models.AppSpec) *AppManager {
	t.Helper()
	env.YukibotDir = t.TempDir()
	return NewAppManager(&models.AppsSpecification{
		Configuration: "1.0",
		Apps:          specs,
	})
}

/**
 * 测试名字变体查找：name/friendly/进程名/目录名，大小写不敏感
 */
func TestManagerLookup(t *testing.T) {
	spec := testAppSpec("sevendays_main", "Seven Days Main", "/srv/games/sevendays")
	spec.ProcessName = "7DaysToDieServer"
	m := newTestManager(t, spec)

	for _, name := range []string{
		"sevendays_main",
		"SEVENDAYS_MAIN",
		"Seven Days Main",
		"seven days main",
		"7daystodieserver",
		"sevendays",
	} {
		app, err := m.Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
			continue
		}
		if app.Name() != "sevendays_main" {
			t.Errorf("Lookup(%q) resolved to %q", name, app.Name())
		}
	}

	_, err := m.Lookup("ghost")
	if !errors.Is(err, config.ErrAppNotFound) {
		t.Errorf("Expected ErrAppNotFound, got %v", err)
	}
}

/**
 * 测试同一时刻最多一个应用running，启动新的先停旧的
 */
func TestManagerSingleCurrent(t *testing.T) {
	m := newTestManager(t,
		testAppSpec("alpha", "", ""),
		testAppSpec("beta", "", ""),
	)

	if err := m.Launch("alpha"); err != nil {
		t.Fatalf("Failed to launch alpha: %v", err)
	}
	defer m.End("all", 0)

	alpha, _ := m.Lookup("alpha")
	if m.Current() != alpha {
		t.Fatal("Expected alpha to be current")
	}
	if !alpha.Running() {
		t.Fatal("Expected alpha to be running")
	}

	if err := m.Launch("beta"); err != nil {
		t.Fatalf("Failed to launch beta: %v", err)
	}
	beta, _ := m.Lookup("beta")
	if m.Current() != beta {
		t.Error("Expected beta to be current")
	}
	if alpha.Running() {
		t.Error("Expected alpha to be stopped after launching beta")
	}
	if alpha.Status() != models.StatusStopped {
		t.Errorf("Expected alpha status stopped, got %s", alpha.Status())
	}

	if err := m.End("current", 0); err != nil {
		t.Fatalf("Failed to end current: %v", err)
	}
	if m.Current() != nil {
		t.Error("Expected no current app after end")
	}
	if beta.Running() {
		t.Error("Expected beta to be stopped")
	}
}

/**
 * 测试禁用的应用拒绝启动
 */
func TestManagerLaunchDisabled(t *testing.T) {
	spec := testAppSpec("disabled_app", "", "")
	spec.Enabled = false
	m := newTestManager(t, spec)

	if err := m.Launch("disabled_app"); err == nil {
		m.End("all", 0)
		t.Fatal("Expected launch of a disabled app to fail")
	}
}

/**
 * 测试启用状态落盘并在新的管理器里生效
 */
func TestManagerTogglePersistence(t *testing.T) {
	specA := testAppSpec("persist_app", "", "")
	m := newTestManager(t, specA)

	if err := m.Toggle("persist_app", false); err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.YukibotDir, "share", "enabled.json")); err != nil {
		t.Fatalf("Expected enabled.json to be written: %v", err)
	}

	// 新的管理器从同一目录加载，规格里的enabled被覆盖
	specB := testAppSpec("persist_app", "", "")
	rebuilt := NewAppManager(&models.AppsSpecification{
		Configuration: "1.0",
		Apps:          []models.AppSpec{specB},
	})
	app, err := rebuilt.Lookup("persist_app")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if app.Spec().Enabled {
		t.Error("Expected persisted disabled state to override the spec")
	}
}

/**
 * 测试延迟停止
 */
func TestManagerDelayedEnd(t *testing.T) {
	m := newTestManager(t, testAppSpec("delayed", "", ""))

	if err := m.Launch("delayed"); err != nil {
		t.Fatalf("Failed to launch: %v", err)
	}
	defer m.End("all", 0)

	if err := m.End("delayed", 200*time.Millisecond); err != nil {
		t.Fatalf("Failed to schedule end: %v", err)
	}
	app, _ := m.Lookup("delayed")
	if !app.Running() {
		t.Error("Expected app to still be running before the delay expires")
	}
	waitFor(t, 5*time.Second, func() bool { return !app.Running() })
}
