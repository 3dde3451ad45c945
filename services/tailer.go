package services

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
)

const (
	// 存活轮询与重连间隔
	tailPollInterval = time.Second
	// 日志窗口修剪参数
	pruneInterval = 60 * time.Second
	pruneChunk    = 1000
	pruneCap      = 5000
)

/**
 * LineMatcher 日志行匹配器
 * @description
 * - Tailer对每一行按注册顺序依次调用所有匹配器
 * - 单个匹配器出错不影响其他匹配器
 */
type LineMatcher interface {
	// Name 匹配器标识，用于日志与指标
	Name() string
	// Match 处理一行日志
	Match(line string) error
}

/**
 * TailSource 日志来源
 * @description
 * - Key()标识来源身份，同一来源复用同一个Tailer
 * - Acquire()获取行读取器，来源断开后可重复调用以重连
 */
type TailSource interface {
	Key() string
	Acquire() (io.Reader, error)
}

// FileSource 外部写入的日志文件，从文件尾部开始跟随
type FileSource struct {
	Path   string
	file   *os.File
	opened bool
}

func (s *FileSource) Key() string { return "file:" + s.Path }

/**
 * Acquire 获取文件读取器
 * @description
 * - 首次打开定位到文件尾，只跟随新增内容
 * - EOF只说明写入端暂时没有新行，保留句柄从同一偏移继续读
 * - 文件被轮转截断(长度小于当前偏移)时重新打开从头读
 */
func (s *FileSource) Acquire() (io.Reader, error) {
	if s.file != nil {
		offset, err := s.file.Seek(0, io.SeekCurrent)
		if err == nil {
			if info, statErr := os.Stat(s.Path); statErr == nil && info.Size() >= offset {
				return s.file, nil
			}
		}
		s.file.Close()
		s.file = nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	if !s.opened {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}
	s.opened = true
	s.file = f
	return f, nil
}

// StreamSource 进程stdout等一次性流，断开后不可重连
type StreamSource struct {
	Name   string
	Reader io.Reader
	used   bool
}

func (s *StreamSource) Key() string { return "stream:" + s.Name }

func (s *StreamSource) Acquire() (io.Reader, error) {
	if s.used {
		return nil, fmt.Errorf("stream source '%s' is exhausted", s.Name)
	}
	s.used = true
	return s.Reader, nil
}

// ConnSource 管理连接的读取端，由TelnetClient维护重连
type ConnSource struct {
	Name     string
	Acquirer func() (net.Conn, error)
}

func (s *ConnSource) Key() string { return "conn:" + s.Name }

func (s *ConnSource) Acquire() (io.Reader, error) {
	conn, err := s.Acquirer()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

/**
 * Tailer 日志跟随器
 * @property {TailSource} source - 日志来源
 * @property {map} window - 单调递增下标的日志窗口
 * @description
 * - 每个来源身份只存在一个Tailer实例
 * - 读取循环容忍来源断开，只要存活判定为真就重新获取读取器
 * - 行下标单调递增，修剪只删最旧的行，不重排
 */
type Tailer struct {
	source   TailSource
	alive    func() bool
	matchers []LineMatcher
	sink     io.Writer //可选的透传落盘

	window    map[int]string
	nextIndex int
	windowMu  sync.RWMutex

	running bool
	stopCh  chan struct{}
	mutex   sync.Mutex
}

var (
	tailers     = map[string]*Tailer{}
	tailersLock sync.Mutex
)

/**
 * GetTailer 按来源身份获取Tailer，不存在则创建
 * @param {TailSource} source - 日志来源
 * @returns {Tailer} 该来源对应的唯一Tailer
 */
func GetTailer(source TailSource) *Tailer {
	tailersLock.Lock()
	defer tailersLock.Unlock()

	if t, exists := tailers[source.Key()]; exists {
		return t
	}
	t := &Tailer{
		source: source,
		window: map[int]string{},
	}
	tailers[source.Key()] = t
	return t
}

// ReleaseTailer 停止并移除来源对应的Tailer
func ReleaseTailer(source TailSource) {
	tailersLock.Lock()
	t, exists := tailers[source.Key()]
	delete(tailers, source.Key())
	tailersLock.Unlock()

	if exists {
		t.Stop()
	}
}

// SetSink 设置透传落盘目标，须在Start之前调用
func (t *Tailer) SetSink(sink io.Writer) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sink = sink
}

/**
 * Start 启动读取循环与修剪循环
 * @param {func} alive - 存活判定，为假时循环退出
 * @param {[]LineMatcher} matchers - 行匹配器，按顺序依次调用
 * @description
 * - 重复Start已运行的Tailer只更新匹配器
 */
func (t *Tailer) Start(alive func() bool, matchers []LineMatcher) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.alive = alive
	t.matchers = matchers
	if t.running {
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})

	go t.readLoop(t.stopCh)
	go t.pruneLoop(t.stopCh)
}

// Stop 停止循环，可重复调用
func (t *Tailer) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
}

func (t *Tailer) stopped(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

/**
 * readLoop 读取循环
 * @description
 * - 存活期间反复获取读取器，获取失败则等待后重试
 * - 读取到的字节按UTF-8解码，非法序列替换不丢行
 * - 空行跳过，其余行进窗口并分发给匹配器
 */
func (t *Tailer) readLoop(stopCh chan struct{}) {
	for !t.stopped(stopCh) {
		if t.alive != nil && !t.alive() {
			if !t.sleep(stopCh, tailPollInterval) {
				return
			}
			continue
		}
		reader, err := t.source.Acquire()
		if err != nil {
			logger.Debugf("Tailer '%s' failed to acquire reader: %v", t.source.Key(), err)
			if !t.sleep(stopCh, tailPollInterval) {
				return
			}
			continue
		}

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if t.stopped(stopCh) {
				return
			}
			line := strings.ToValidUTF8(scanner.Text(), "�")
			line = strings.TrimRight(line, " \t\r\n")
			if line == "" {
				continue
			}
			t.appendLine(line)
			t.dispatch(line)
		}
		if err := scanner.Err(); err != nil {
			logger.Debugf("Tailer '%s' read error: %v", t.source.Key(), err)
		}
		// 来源断开，存活期间等待后重新获取
		if !t.sleep(stopCh, tailPollInterval) {
			return
		}
	}
}

func (t *Tailer) sleep(stopCh chan struct{}, d time.Duration) bool {
	select {
	case <-stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (t *Tailer) appendLine(line string) {
	t.windowMu.Lock()
	t.window[t.nextIndex] = line
	t.nextIndex++
	t.windowMu.Unlock()

	if t.sink != nil {
		fmt.Fprintln(t.sink, line)
	}
}

/**
 * dispatch 将一行分发给所有匹配器
 * @description
 * - 匹配器按注册顺序依次调用
 * - 单个匹配器panic或返回错误时记录日志，继续调用其余匹配器
 */
func (t *Tailer) dispatch(line string) {
	t.mutex.Lock()
	matchers := t.matchers
	t.mutex.Unlock()

	for _, m := range matchers {
		t.safeMatch(m, line)
	}
}

func (t *Tailer) safeMatch(m LineMatcher, line string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Matcher '%s' panicked on line: %v", m.Name(), r)
			GetMetricsService().IncrementMatcherError(m.Name())
		}
	}()
	if err := m.Match(line); err != nil {
		logger.Warnf("Matcher '%s' failed: %v", m.Name(), err)
		GetMetricsService().IncrementMatcherError(m.Name())
	}
}

/**
 * pruneLoop 修剪循环
 * @description
 * - 每60秒检查一次，窗口超过上限时按块删除最旧的行
 * - 只删除不重排，下标保持单调
 */
func (t *Tailer) pruneLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.prune()
		}
	}
}

func (t *Tailer) prune() {
	t.windowMu.Lock()
	defer t.windowMu.Unlock()

	for len(t.window) > pruneCap {
		indexes := t.sortedIndexes()
		n := pruneChunk
		if n > len(indexes) {
			n = len(indexes)
		}
		for _, idx := range indexes[:n] {
			delete(t.window, idx)
		}
		logger.Debugf("Tailer '%s' pruned %d lines, %d remain", t.source.Key(), n, len(t.window))
	}
}

func (t *Tailer) sortedIndexes() []int {
	indexes := make([]int, 0, len(t.window))
	for idx := range t.window {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

/**
 * RecentLines 返回窗口里最新的n行
 * @param {int} n - 行数
 * @returns {[]string} 按下标升序排列的行
 */
func (t *Tailer) RecentLines(n int) []string {
	t.windowMu.RLock()
	defer t.windowMu.RUnlock()

	indexes := t.sortedIndexes()
	if n < len(indexes) {
		indexes = indexes[len(indexes)-n:]
	}
	lines := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		lines = append(lines, t.window[idx])
	}
	return lines
}

/**
 * SpecificLines 返回下标区间[start, end)内仍存在的行
 * @param {int} start - 起始下标(含)
 * @param {int} end - 结束下标(不含)，小于0表示到当前最新
 * @returns {[]string} 按下标升序排列的行，已被修剪的下标跳过
 */
func (t *Tailer) SpecificLines(start, end int) []string {
	t.windowMu.RLock()
	defer t.windowMu.RUnlock()

	if end < 0 {
		end = t.nextIndex
	}
	var lines []string
	for idx := start; idx < end; idx++ {
		if line, exists := t.window[idx]; exists {
			lines = append(lines, line)
		}
	}
	return lines
}

// NextIndex 下一行将使用的下标
func (t *Tailer) NextIndex() int {
	t.windowMu.RLock()
	defer t.windowMu.RUnlock()
	return t.nextIndex
}
