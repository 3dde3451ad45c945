package services

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
	"github.com/APasz/Yukibot/internal/utils"
)

const (
	// 优雅退出的总宽限时间
	terminateGrace = 5 * time.Second
	// 宽限后的轮询参数
	terminatePollCount    = 10
	terminatePollInterval = 300 * time.Millisecond
)

/**
 * ProcessInstance 游戏服务器进程实例
 * @property {string} title - 进程标题，用于显示
 * @property {string} processName - 进程列表显示的进程名，用于游离进程扫描
 * @property {[]string} processCmd - 命令行片段，与进程名一起确定进程身份，防误杀
 * @property {string} command - 执行命令
 * @property {[]string} args - 命令参数
 * @property {string} workDir - 工作目录
 * @property {RunStatus} status - 进程状态: running/exited/stopped/error
 * @description
 * - stdout被保留为管道，交给Tailer消费
 * - stderr落盘到logs/<title>/errout.log
 * - stdin被保留为管道，用于控制台驱动的游戏服务器
 */
type ProcessInstance struct {
	Title          string           //显示用的名字
	ProcessName    string           //进程名，用于查找进程
	ProcessCmd     []string         //命令行片段，用于游离进程扫描
	Command        string           //进程启动命令
	Args           []string         //进程参数
	WorkDir        string           //工作目录
	Status         models.RunStatus //状态
	StartTime      time.Time        //启动时间
	LastExitTime   time.Time        //最后一次退出的时间
	LastExitReason string           //最后一次退出的原因
	stdout         io.ReadCloser    //stdout管道，交给Tailer
	stdin          io.WriteCloser   //stdin管道，控制台协议用
	errout         *os.File         //stderr落盘文件
	process        *os.Process      //统一的进程对象，用于Wait()
	waitDone       chan struct{}    //Wait()返回后关闭
	mutex          sync.Mutex       //保护实例数据一致性的锁
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {string} title - 进程标题，可以唯一确定一个进程，即使它重启过
 * @param {AppSpec} spec - 应用规格
 * @returns {ProcessInstance} 返回创建的进程实例
 */
func NewProcessInstance(title string, spec *models.AppSpec) *ProcessInstance {
	return &ProcessInstance{
		Title:       title,
		ProcessName: spec.ProcessName,
		ProcessCmd:  spec.ProcessCmd,
		Command:     spec.Command,
		Args:        spec.Args,
		WorkDir:     spec.Directory,
		Status:      models.StatusExited,
	}
}

func (pi *ProcessInstance) Pid() int {
	if pi.process == nil {
		return 0
	}
	return pi.process.Pid
}

// Stdout 启动后返回stdout管道，未启动时为nil
func (pi *ProcessInstance) Stdout() io.Reader {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.stdout
}

// WriteStdin 向进程控制台写入一行命令
func (pi *ProcessInstance) WriteStdin(line string) error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.stdin == nil {
		return fmt.Errorf("process '%s' has no stdin pipe", pi.Title)
	}
	_, err := io.WriteString(pi.stdin, line+"\n")
	return err
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	return models.ProcessDetail{
		Title:          pi.Title,
		ProcessName:    pi.ProcessName,
		Command:        pi.Command,
		Args:           pi.Args,
		WorkDir:        pi.WorkDir,
		Status:         pi.Status,
		Pid:            pi.Pid(),
		StartTime:      pi.StartTime,
		LastExitTime:   pi.LastExitTime,
		LastExitReason: pi.LastExitReason,
	}
}

/**
 * StartProcess 启动进程
 * @returns {error} 返回错误信息
 * @description
 * - 渲染命令模板，在工作目录下拉起进程
 * - stdout接管为管道，stderr落盘，stdin保留
 * - 启动协程等待进程退出并更新状态
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status == models.StatusRunning || pi.Status == models.StatusStarting {
		return nil
	}
	command, args, err := utils.GetCommandLine(pi.Command, pi.Args, pi)
	if err != nil {
		return err
	}
	logger.Infof("Executing command: %s %v", command, args)

	cmd := exec.Command(command, args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	// 独立进程组，游戏服务器不随本进程退出
	utils.SetNewPG(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	cmd.Stderr = pi.openErrout()

	if err := cmd.Start(); err != nil {
		pi.Status = models.StatusError
		pi.LastExitReason = fmt.Sprintf("start failed: %v", err)
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}

	pi.stdout = stdout
	pi.stdin = stdin
	pi.process = cmd.Process
	pi.Status = models.StatusRunning
	pi.StartTime = time.Now()
	pi.waitDone = make(chan struct{})

	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.Pid())

	go pi.watchProcess(cmd)
	return nil
}

// openErrout 打开logs/<title>/errout.log，失败时退化为丢弃
func (pi *ProcessInstance) openErrout() io.Writer {
	dir := filepath.Join(env.YukibotDir, "logs", pi.Title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warnf("Failed to create errout dir for '%s': %v", pi.Title, err)
		return io.Discard
	}
	f, err := os.OpenFile(filepath.Join(dir, "errout.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warnf("Failed to open errout log for '%s': %v", pi.Title, err)
		return io.Discard
	}
	pi.errout = f
	return f
}

/**
 * CheckRunning 存活判定
 * @returns {bool} 进程是否仍在运行
 * @description
 * - 状态与信号0探测双重确认
 * - 探测失败时修正状态为exited
 */
func (pi *ProcessInstance) CheckRunning() bool {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status != models.StatusRunning || pi.process == nil {
		return false
	}
	running, err := utils.IsProcessRunning(pi.Pid())
	if err != nil || !running {
		logger.Warnf("Process '%s' (PID: %d, NAME: %s) isn't running", pi.Title, pi.Pid(), pi.ProcessName)
		pi.Status = models.StatusExited
		return false
	}
	return true
}

/**
 * Terminate 终止进程，逐级升级
 * @returns {error} 返回错误信息
 * @description
 * - 先发送SIGTERM，等待宽限时间
 * - 宽限后轮询探测，进程仍在则SIGKILL
 * - 最后按进程名+命令行片段扫描并清理游离进程
 */
func (pi *ProcessInstance) Terminate() error {
	pi.mutex.Lock()
	proc := pi.process
	waitDone := pi.waitDone
	pi.Status = models.StatusStopping
	pi.mutex.Unlock()

	if proc != nil {
		logger.Infof("Terminating process '%s' (PID: %d)", pi.Title, proc.Pid)
		if err := utils.TerminateProcess(proc); err != nil {
			logger.Warnf("Failed to signal process '%s': %v", pi.Title, err)
		}
		if !pi.waitExit(waitDone, terminateGrace) {
			exited := false
			for i := 0; i < terminatePollCount; i++ {
				if pi.waitExit(waitDone, terminatePollInterval) {
					exited = true
					break
				}
			}
			if !exited {
				// PID可能已被回收复用，强杀前核对进程名
				target := proc
				if pi.ProcessName != "" {
					found, err := utils.FindProcess(pi.ProcessName, proc.Pid)
					if err != nil {
						logger.Warnf("PID %d no longer belongs to '%s', skipping kill: %v", proc.Pid, pi.ProcessName, err)
						target = nil
					} else {
						target = found
					}
				}
				if target != nil {
					logger.Warnf("Process '%s' (PID: %d) ignored termination, killing", pi.Title, proc.Pid)
					if err := target.Kill(); err != nil {
						logger.Errorf("Failed to kill process '%s': %v", pi.Title, err)
					}
					pi.waitExit(waitDone, terminateGrace)
				}
			}
		}
	}

	// 清理进程表里残留的同类进程
	if count := utils.KillStrayProcesses(pi.ProcessName, pi.ProcessCmd); count > 0 {
		logger.Warnf("Cleaned up %d stray process(es) of '%s'", count, pi.ProcessName)
	}

	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.Status = models.StatusStopped
	pi.LastExitTime = time.Now()
	pi.LastExitReason = "stopped by user"
	pi.process = nil
	logger.Infof("Process '%s' stopped", pi.Title)
	return nil
}

// waitExit 等待监控协程确认进程退出，超时返回false
func (pi *ProcessInstance) waitExit(waitDone chan struct{}, timeout time.Duration) bool {
	if waitDone == nil {
		return true
	}
	select {
	case <-waitDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

/**
 * watchProcess 监控进程状态的协程
 * @description
 * - 统一使用cmd.Wait()等待进程退出
 * - 更新进程状态并记录退出原因
 * - 关闭errout文件与waitDone通知
 */
func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd) {
	err := cmd.Wait()

	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	pi.LastExitTime = time.Now()
	if pi.Status == models.StatusStopping || pi.Status == models.StatusStopped {
		logger.Infof("Process '%s' stopped by user", pi.Title)
	} else if err != nil {
		logger.Errorf("Process '%s' exited with error: %v", pi.Title, err)
		pi.LastExitReason = fmt.Sprintf("exited with error: %v", err)
		pi.Status = models.StatusError
	} else {
		logger.Infof("Process '%s' exited normally", pi.Title)
		pi.LastExitReason = "exited normally"
		pi.Status = models.StatusExited
	}
	if pi.errout != nil {
		pi.errout.Close()
		pi.errout = nil
	}
	if pi.waitDone != nil {
		close(pi.waitDone)
		pi.waitDone = nil
	}
}
