package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

// 当前应用的巡检间隔
const currentWatchInterval = time.Second

/**
 * AppManager 应用注册表与生命周期管理器
 * @property {map} apps - 注册的应用实例
 * @property {AppInstance} current - 当前运行的应用，最多一个
 * @description
 * - 同一时刻最多只有一个应用处于running，启动新的会先停掉旧的
 * - 名字查找支持name/friendly/进程名/目录名的大小写变体
 * - 启用状态落盘到share/enabled.json，重启后保持
 */
type AppManager struct {
	apps    map[string]*AppInstance
	current *AppInstance
	mutex   sync.Mutex

	watchOnce sync.Once
}

var (
	appManager     *AppManager
	appManagerOnce sync.Once
)

func GetAppManager() *AppManager {
	appManagerOnce.Do(func() {
		appManager = NewAppManager(config.Spec())
	})
	return appManager
}

/**
 * NewAppManager 由规格构造管理器
 * @param {AppsSpecification} spec - 应用规格清单
 * @returns {AppManager} 管理器实例
 * @description
 * - enabled.json里的记录覆盖规格里的enabled
 */
func NewAppManager(spec *models.AppsSpecification) *AppManager {
	m := &AppManager{
		apps: map[string]*AppInstance{},
	}
	enabled := m.loadEnabled()
	for i := range spec.Apps {
		appSpec := &spec.Apps[i]
		if state, exists := enabled[appSpec.Name]; exists {
			appSpec.Enabled = state
		}
		m.apps[appSpec.Name] = NewAppInstance(appSpec)
	}
	return m
}

/**
 * Lookup 按名字变体查找应用
 * @param {string} name - name/friendly/进程名/目录名，任意大小写
 * @returns {AppInstance} 应用实例
 * @description
 * - 精确name优先，其余变体按注册顺序无保证
 */
func (m *AppManager) Lookup(name string) (*AppInstance, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if app, exists := m.apps[name]; exists {
		return app, nil
	}
	lowered := strings.ToLower(name)
	for _, app := range m.apps {
		spec := app.Spec()
		candidates := []string{
			spec.Name,
			spec.Friendly,
			spec.ProcessName,
			filepath.Base(spec.Directory),
		}
		for _, candidate := range candidates {
			if candidate != "" && strings.ToLower(candidate) == lowered {
				return app, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", config.ErrAppNotFound, name)
}

// Current 当前运行的应用，没有时为nil
func (m *AppManager) Current() *AppInstance {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current
}

// List 全部应用实例
func (m *AppManager) List() []*AppInstance {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	apps := make([]*AppInstance, 0, len(m.apps))
	for _, app := range m.apps {
		apps = append(apps, app)
	}
	return apps
}

/**
 * Launch 启动应用
 * @param {string} name - 名字变体
 * @returns {error} 返回错误信息
 * @description
 * - 禁用的应用拒绝启动
 * - 已有当前应用时先停掉它，保证最多一个running
 */
func (m *AppManager) Launch(name string) error {
	app, err := m.Lookup(name)
	if err != nil {
		return err
	}
	if !app.Spec().Enabled {
		return fmt.Errorf("app '%s' is disabled", app.Name())
	}

	m.mutex.Lock()
	current := m.current
	m.mutex.Unlock()
	if current != nil && current != app {
		logger.Infof("Stopping current app '%s' before launching '%s'", current.Name(), app.Name())
		if err := current.Stop(); err != nil {
			logger.Warnf("Failed to stop current app '%s': %v", current.Name(), err)
		}
	}

	if err := app.Start(); err != nil {
		return err
	}
	m.mutex.Lock()
	m.current = app
	m.mutex.Unlock()
	return nil
}

/**
 * End 停止应用
 * @param {string} name - 名字变体，空串或"current"表示当前应用，"all"表示全部
 * @param {time.Duration} delay - 延迟停止，0为立即
 * @returns {error} 返回错误信息
 */
func (m *AppManager) End(name string, delay time.Duration) error {
	if delay > 0 {
		logger.Infof("App '%s' will stop in %v", name, delay)
		time.AfterFunc(delay, func() {
			if err := m.End(name, 0); err != nil {
				logger.Warnf("Timed stop of '%s' failed: %v", name, err)
			}
		})
		return nil
	}

	if name == "all" {
		for _, app := range m.List() {
			if err := m.endApp(app); err != nil {
				logger.Warnf("Failed to stop app '%s': %v", app.Name(), err)
			}
		}
		return nil
	}
	if name == "" || name == "current" {
		current := m.Current()
		if current == nil {
			return fmt.Errorf("no app is currently running")
		}
		return m.endApp(current)
	}
	app, err := m.Lookup(name)
	if err != nil {
		return err
	}
	return m.endApp(app)
}

func (m *AppManager) endApp(app *AppInstance) error {
	err := app.Stop()

	m.mutex.Lock()
	if m.current == app {
		m.current = nil
	}
	m.mutex.Unlock()
	return err
}

/**
 * Toggle 启用/禁用应用
 * @param {string} name - 名字变体
 * @param {bool} enabled - 目标状态
 * @returns {error} 返回错误信息
 * @description
 * - 禁用当前运行的应用不会停止它，只影响后续启动
 * - 状态落盘到share/enabled.json
 */
func (m *AppManager) Toggle(name string, enabled bool) error {
	app, err := m.Lookup(name)
	if err != nil {
		return err
	}
	app.Spec().Enabled = enabled
	m.dumpEnabled()
	logger.Infof("App '%s' is now %s", app.Name(), map[bool]string{true: "enabled", false: "disabled"}[enabled])
	return nil
}

func (m *AppManager) enabledPath() string {
	return filepath.Join(env.YukibotDir, "share", "enabled.json")
}

func (m *AppManager) loadEnabled() map[string]bool {
	enabled := map[string]bool{}
	data, err := os.ReadFile(m.enabledPath())
	if err != nil {
		return enabled
	}
	if err := json.Unmarshal(data, &enabled); err != nil {
		logger.Warnf("Failed to parse enabled.json: %v", err)
	}
	return enabled
}

func (m *AppManager) dumpEnabled() {
	m.mutex.Lock()
	enabled := make(map[string]bool, len(m.apps))
	for name, app := range m.apps {
		enabled[name] = app.Spec().Enabled
	}
	m.mutex.Unlock()

	data, err := json.MarshalIndent(enabled, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.enabledPath()), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(m.enabledPath(), data, 0o644); err != nil {
		logger.Warnf("Failed to write enabled.json: %v", err)
	}
}

/**
 * StartWatch 启动当前应用巡检协程
 * @description
 * - 每秒检查当前应用是否仍然存活
 * - 进程意外退出时清理资源并清空current
 */
func (m *AppManager) StartWatch() {
	m.watchOnce.Do(func() {
		go m.watchLoop()
	})
}

func (m *AppManager) watchLoop() {
	ticker := time.NewTicker(currentWatchInterval)
	defer ticker.Stop()

	for range ticker.C {
		current := m.Current()
		if current == nil {
			continue
		}
		if current.Status() == models.StatusRunning && !current.Running() {
			logger.Errorf("Current app '%s' died unexpectedly", current.Name())
			if err := m.endApp(current); err != nil {
				logger.Warnf("Cleanup of dead app '%s' failed: %v", current.Name(), err)
			}
		}
	}
}
