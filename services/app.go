package services

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

/**
 * GameAdapter 游戏适配器
 * @description
 * - 封装某一款游戏的日志格式、管理协议命令与查询
 * - 一个适配器实例可服务多个应用实例，方法都以应用为参数
 */
type GameAdapter interface {
	Name() string
	// Matchers 返回该游戏的日志行匹配器
	Matchers(app *AppInstance) []LineMatcher
	// Deliver 把消息写进游戏
	Deliver(app *AppInstance, msg *Message) error
	// GracefulStop 通过管理协议优雅关闭游戏服务器
	GracefulStop(app *AppInstance) error
	// Poll 周期性查询(在线人数/游戏时间等)
	Poll(app *AppInstance)
}

var adapters = map[string]GameAdapter{}

// RegisterAdapter 注册游戏适配器，init()时调用
func RegisterAdapter(name string, adapter GameAdapter) {
	adapters[name] = adapter
}

/**
 * AppInstance 应用实例，一个被托管的游戏服务器
 * @property {AppSpec} spec - 应用规格
 * @property {ProcessInstance} process - 进程实例
 * @property {Tailer} tailer - 日志跟随器
 * @description
 * - 生命周期: Stopped -> Starting -> Running -> Stopping -> Stopped
 * - 错误预算在每次启动时清零，跨启动不累计
 * - 实现Receiver接口，由relay按频道分发消息
 */
type AppInstance struct {
	spec    *models.AppSpec
	process *ProcessInstance
	adapter GameAdapter
	tailer  *Tailer
	telnet  *TelnetClient
	rcon    *RconClient

	status   models.RunStatus
	identity string   //存活身份，每次启动不同
	sinkFile *os.File //stdout.log落盘文件

	budgets   map[string]int
	budgetsMu sync.Mutex

	players   *models.PlayerCount
	gameDay   int
	gameHour  int
	gameMin   int
	gameStats map[string]string
	pollTimes map[string]time.Time
	stateMu   sync.RWMutex

	pollStop chan struct{}
	mutex    sync.Mutex
}

/**
 * NewAppInstance 由规格创建应用实例
 * @param {AppSpec} spec - 应用规格
 * @returns {AppInstance} 应用实例
 * @description
 * - 未知的适配器名退化为plain适配器
 */
func NewAppInstance(spec *models.AppSpec) *AppInstance {
	adapter, exists := adapters[spec.Adapter]
	if !exists {
		if spec.Adapter != "" && spec.Adapter != "plain" {
			logger.Warnf("Unknown adapter '%s' for app '%s', using plain", spec.Adapter, spec.Name)
		}
		adapter = adapters["plain"]
	}
	return &AppInstance{
		spec:      spec,
		adapter:   adapter,
		process:   NewProcessInstance(spec.Name, spec),
		status:    models.StatusStopped,
		budgets:   map[string]int{},
		gameStats: map[string]string{},
		pollTimes: map[string]time.Time{},
	}
}

func (a *AppInstance) Spec() *models.AppSpec     { return a.spec }
func (a *AppInstance) Process() *ProcessInstance { return a.process }
func (a *AppInstance) Tailer() *Tailer           { return a.tailer }
func (a *AppInstance) Name() string              { return a.spec.Name }
func (a *AppInstance) Scope() string             { return a.spec.Scope }

func (a *AppInstance) Status() models.RunStatus {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.status
}

// Running 存活判定: 状态为running且进程确实存在
func (a *AppInstance) Running() bool {
	a.mutex.Lock()
	status := a.status
	a.mutex.Unlock()
	if status != models.StatusRunning {
		return false
	}
	return a.process.CheckRunning()
}

/**
 * Deliver 把聊天消息写进游戏(Receiver接口)
 * @param {Message} msg - appbound消息
 */
func (a *AppInstance) Deliver(msg *Message) error {
	return a.adapter.Deliver(a, msg)
}

/**
 * Budget 错误预算计数
 * @param {string} key - 子系统标识
 * @returns {int} 自增后的计数
 */
func (a *AppInstance) Budget(key string) int {
	a.budgetsMu.Lock()
	defer a.budgetsMu.Unlock()
	a.budgets[key]++
	return a.budgets[key]
}

// preclearBudgets 启动时清零所有错误预算
func (a *AppInstance) preclearBudgets() {
	a.budgetsMu.Lock()
	defer a.budgetsMu.Unlock()
	a.budgets = map[string]int{}
}

/**
 * Start 启动应用
 * @returns {error} 返回错误信息
 * @description
 * - 清零错误预算，拉起进程，确认存活
 * - 建立管理协议连接，启动日志跟随与轮询
 * - 注册到relay的频道后进入running
 */
func (a *AppInstance) Start() error {
	a.mutex.Lock()
	if a.status == models.StatusRunning || a.status == models.StatusStarting {
		a.mutex.Unlock()
		return fmt.Errorf("app '%s' is already %s", a.spec.Name, a.status)
	}
	a.status = models.StatusStarting
	a.mutex.Unlock()

	a.preclearBudgets()
	a.stateMu.Lock()
	a.players = nil
	a.gameStats = map[string]string{}
	a.pollTimes = map[string]time.Time{}
	a.stateMu.Unlock()

	if err := a.process.StartProcess(); err != nil {
		a.setStatus(models.StatusError)
		return err
	}
	a.identity = fmt.Sprintf("%s@%d", a.spec.Name, a.process.StartTime.UnixNano())

	if !a.process.CheckRunning() {
		a.setStatus(models.StatusError)
		return fmt.Errorf("app '%s' exited immediately after launch", a.spec.Name)
	}

	if err := a.setupClients(); err != nil {
		logger.Errorf("App '%s' admin setup failed: %v", a.spec.Name, err)
		a.releaseClients()
		a.process.Terminate()
		a.setStatus(models.StatusError)
		return err
	}

	a.tailer = GetTailer(a.tailSource())
	if sink := a.openSink(); sink != nil {
		a.tailer.SetSink(sink)
	}
	a.tailer.Start(a.process.CheckRunning, a.adapter.Matchers(a))

	a.mutex.Lock()
	a.status = models.StatusRunning
	a.pollStop = make(chan struct{})
	a.mutex.Unlock()

	go a.pollLoop(a.pollStop)

	if a.spec.ChatChannel != "" {
		GetChatRelay().RegisterReceiver(a.spec.ChatChannel, a)
	}
	logger.Infof("App '%s' is running (PID: %d)", a.spec.Name, a.process.Pid())
	return nil
}

func (a *AppInstance) setStatus(status models.RunStatus) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.status = status
}

// setupClients 按协议建立管理连接
func (a *AppInstance) setupClients() error {
	switch a.spec.Protocol {
	case "rcon":
		a.rcon = GetRconClient(a.identity, a.spec.Host, a.spec.Port,
			os.Getenv(a.spec.PasswordEnv), a.process.CheckRunning)
		return a.rcon.Setup()
	case "telnet":
		a.telnet = GetTelnetClient(a.identity, a.spec.Host, a.spec.Port,
			a.spec.Prefix, a.spec.Suffix, a.process.CheckRunning)
		return a.telnet.Setup()
	case "", "none":
		return nil
	default:
		return fmt.Errorf("unknown admin protocol '%s'", a.spec.Protocol)
	}
}

// releaseClients 把管理协议客户端从池里拆除，Setup失败或停止时调用
func (a *AppInstance) releaseClients() {
	if a.telnet != nil {
		ReleaseTelnetClient(a.identity, a.spec.Host, a.spec.Port)
		a.telnet = nil
	}
	if a.rcon != nil {
		ReleaseRconClient(a.identity, a.spec.Host, a.spec.Port)
		a.rcon = nil
	}
}

// openSink 打开logs/<name>/stdout.log作为日志透传落盘
func (a *AppInstance) openSink() *os.File {
	dir := filepath.Join(env.YukibotDir, "logs", a.spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warnf("Failed to create log dir for '%s': %v", a.spec.Name, err)
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "stdout.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warnf("Failed to open stdout log for '%s': %v", a.spec.Name, err)
		return nil
	}
	a.sinkFile = f
	return f
}

/**
 * tailSource 选择日志来源
 * @description
 * - 配置了外部日志文件时跟随文件
 * - telnet协议的游戏把日志写在控制台连接上
 * - 其余情况跟随进程stdout
 */
func (a *AppInstance) tailSource() TailSource {
	if a.spec.ServerLog != "" {
		return &FileSource{Path: a.spec.ServerLog}
	}
	if a.telnet != nil {
		return &ConnSource{
			Name: a.identity,
			Acquirer: func() (net.Conn, error) {
				return a.telnet.AcquireReader()
			},
		}
	}
	return &StreamSource{Name: a.identity, Reader: a.process.Stdout()}
}

/**
 * Stop 停止应用
 * @returns {error} 返回错误信息
 * @description
 * - 先退出running，再尝试管理协议优雅关闭
 * - 随后停掉轮询/日志跟随/管理连接，最后终止进程
 * - 各步骤失败不阻断后续步骤
 */
func (a *AppInstance) Stop() error {
	a.mutex.Lock()
	if a.status != models.StatusRunning && a.status != models.StatusStarting {
		a.mutex.Unlock()
		return nil
	}
	a.status = models.StatusStopping
	pollStop := a.pollStop
	a.pollStop = nil
	a.mutex.Unlock()

	if a.spec.ChatChannel != "" {
		GetChatRelay().UnregisterReceiver(a.spec.Name)
	}
	if pollStop != nil {
		close(pollStop)
	}

	if a.process.CheckRunning() {
		if err := a.adapter.GracefulStop(a); err != nil {
			logger.Warnf("App '%s' graceful stop failed: %v", a.spec.Name, err)
		}
	}

	if a.tailer != nil {
		ReleaseTailer(a.tailer.source)
		a.tailer = nil
	}
	if a.sinkFile != nil {
		a.sinkFile.Close()
		a.sinkFile = nil
	}
	a.releaseClients()

	err := a.process.Terminate()
	a.setStatus(models.StatusStopped)
	logger.Infof("App '%s' stopped", a.spec.Name)
	return err
}

// pollLoop 周期调用适配器查询
func (a *AppInstance) pollLoop(stopCh chan struct{}) {
	interval := time.Duration(config.Config.Interval.Players) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.Running() {
				continue
			}
			a.adapter.Poll(a)
		}
	}
}

/**
 * PollDue 判定某类轮询是否到期
 * @param {string} key - 轮询类别
 * @param {time.Duration} interval - 该类别的轮询间隔
 * @returns {bool} 到期返回真并刷新时间戳
 */
func (a *AppInstance) PollDue(key string, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if time.Since(a.pollTimes[key]) < interval {
		return false
	}
	a.pollTimes[key] = time.Now()
	return true
}

// SetPlayers 更新在线人数(匹配器/适配器回写)
func (a *AppInstance) SetPlayers(online, max int) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.players = &models.PlayerCount{Online: online, Max: max}
}

// Players 当前在线人数，未知时为nil
func (a *AppInstance) Players() *models.PlayerCount {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if a.players == nil {
		return nil
	}
	copied := *a.players
	return &copied
}

// SetGameTime 更新游戏内时间(匹配器回写)
func (a *AppInstance) SetGameTime(day, hour, minute int) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.gameDay, a.gameHour, a.gameMin = day, hour, minute
}

// GameTime 游戏内时间
func (a *AppInstance) GameTime() (day, hour, minute int) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.gameDay, a.gameHour, a.gameMin
}

// SetGameStat 更新单项游戏统计(匹配器回写)
func (a *AppInstance) SetGameStat(key, value string) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.gameStats[key] = value
}

// GameStat 读取单项游戏统计
func (a *AppInstance) GameStat(key string) (string, bool) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	value, exists := a.gameStats[key]
	return value, exists
}

// GetDetail 应用详情
func (a *AppInstance) GetDetail(current bool) models.AppDetail {
	return models.AppDetail{
		Name:       a.spec.Name,
		Friendly:   a.spec.Friendly,
		Scope:      a.spec.Scope,
		Status:     a.Status(),
		Enabled:    a.spec.Enabled,
		Current:    current,
		Pid:        a.process.Pid(),
		StartTime:  a.process.StartTime,
		PlayerInfo: a.Players(),
		Process:    a.process.GetDetail(),
	}
}
