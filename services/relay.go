package services

import (
	"strings"
	"sync"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

// 去重窗口，只记住最近这么多条消息ID
const seenCap = 512

/**
 * Receiver 接收发往游戏的消息的一端
 * @description
 * - 应用实例实现此接口，由relay按频道分发
 * - Running()为假时跳过分发，不算失败
 */
type Receiver interface {
	Name() string
	Scope() string
	Running() bool
	Deliver(msg *Message) error
}

// ChatSender 把消息投递到聊天平台的一端
type ChatSender interface {
	SendChat(channel string, payload *models.ChatPayload) error
}

/**
 * ChatRelay 聊天中继
 * @property {[]Message} queue - FIFO消息队列
 * @description
 * - 入队非阻塞，消费循环单协程保证顺序
 * - 频道到应用的注册表决定appbound消息的扇出目标
 * - 订阅者无条件收到所有消息，单个订阅者失败不影响其他
 */
type ChatRelay struct {
	queue   []*Message
	queueMu sync.Mutex
	queueCv *sync.Cond

	receivers   map[string][]Receiver //channel -> receivers
	subscribers map[string]func(*Message) error
	sender      ChatSender
	regMu       sync.RWMutex

	seenIDs  map[string]bool
	seenRing []string
	seenMu   sync.Mutex

	running bool
	stopCh  chan struct{}
	mutex   sync.Mutex
}

var (
	chatRelay     *ChatRelay
	chatRelayOnce sync.Once
)

func GetChatRelay() *ChatRelay {
	chatRelayOnce.Do(func() {
		chatRelay = NewChatRelay()
	})
	return chatRelay
}

func NewChatRelay() *ChatRelay {
	r := &ChatRelay{
		receivers:   map[string][]Receiver{},
		subscribers: map[string]func(*Message) error{},
		seenIDs:     map[string]bool{},
	}
	r.queueCv = sync.NewCond(&r.queueMu)
	return r
}

// SetSender 设置聊天平台投递端
func (r *ChatRelay) SetSender(sender ChatSender) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	r.sender = sender
}

// Start 启动消费循环，可重复调用
func (r *ChatRelay) Start() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	go r.consumeLoop(r.stopCh)
}

// Stop 停止消费循环
func (r *ChatRelay) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
	r.queueCv.Broadcast()
}

/**
 * RegisterReceiver 把应用注册到频道
 * @param {string} channel - 频道
 * @param {Receiver} receiver - 接收端
 * @description
 * - 同一频道可以注册多个应用，消息扇出到全部
 * - 重复注册同名应用会先移除旧的
 */
func (r *ChatRelay) RegisterReceiver(channel string, receiver Receiver) {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	list := r.receivers[channel]
	for i, existing := range list {
		if existing.Name() == receiver.Name() {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	r.receivers[channel] = append(list, receiver)
	logger.Infof("Receiver '%s' registered on channel '%s'", receiver.Name(), channel)
}

// UnregisterReceiver 把应用从所有频道移除
func (r *ChatRelay) UnregisterReceiver(name string) {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	for channel, list := range r.receivers {
		for i, existing := range list {
			if existing.Name() == name {
				r.receivers[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

/**
 * RegisterSubscriber 注册特殊订阅者
 * @param {string} label - 订阅者标识，用于日志
 * @param {func} handler - 消息处理函数
 * @description
 * - 订阅者收到所有经过relay的消息，与频道无关
 */
func (r *ChatRelay) RegisterSubscriber(label string, handler func(*Message) error) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	r.subscribers[label] = handler
}

// QueueLen 队列当前深度
func (r *ChatRelay) QueueLen() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

/**
 * Add 消息入队
 * @param {Message} msg - 消息
 * @description
 * - 非阻塞，唤醒消费循环
 */
func (r *ChatRelay) Add(msg *Message) {
	r.queueMu.Lock()
	r.queue = append(r.queue, msg)
	r.queueMu.Unlock()
	r.queueCv.Signal()
	GetMetricsService().IncrementRelayQueued()
}

/**
 * HandleInbound 处理聊天平台入站事件
 * @param {ChatEvent} event - 入站事件
 * @description
 * - 已见过的消息ID直接忽略
 * - 机器人消息与命令前缀开头的消息不中继
 * - 记录发言者别名，构造appbound消息并启动链接补全
 */
func (r *ChatRelay) HandleInbound(event *models.ChatEvent) {
	if event.MessageID != "" && !r.markSeen(event.MessageID) {
		logger.Debugf("Duplicate message %s ignored", event.MessageID)
		return
	}
	if event.Bot {
		return
	}
	ignore := config.Config.Chat.IgnorePrefix
	if ignore != "" && strings.HasPrefix(event.Content, ignore) {
		return
	}
	msg := NewAppBound(event)
	msg.Enrich()
	r.Add(msg)
}

// markSeen 记录消息ID，已见过返回false
func (r *ChatRelay) markSeen(id string) bool {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	if r.seenIDs[id] {
		return false
	}
	r.seenIDs[id] = true
	r.seenRing = append(r.seenRing, id)
	if len(r.seenRing) > seenCap {
		delete(r.seenIDs, r.seenRing[0])
		r.seenRing = r.seenRing[1:]
	}
	return true
}

func (r *ChatRelay) consumeLoop(stopCh chan struct{}) {
	for {
		msg := r.pop(stopCh)
		if msg == nil {
			return
		}
		r.process(msg)
	}
}

func (r *ChatRelay) pop(stopCh chan struct{}) *Message {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	for len(r.queue) == 0 {
		select {
		case <-stopCh:
			return nil
		default:
		}
		r.queueCv.Wait()
	}
	select {
	case <-stopCh:
		return nil
	default:
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg
}

/**
 * process 处理单条消息
 * @description
 * - 等待链接补全完成后再投递
 * - appbound扇出到频道上所有运行中的应用
 * - chatbound投递到聊天平台，失败丢弃并计数
 * - 订阅者永远被调用，即使前面的投递失败
 */
func (r *ChatRelay) process(msg *Message) {
	msg.Wait()

	delivered := false
	switch msg.Direction {
	case DirAppBound:
		delivered = r.fanoutToApps(msg)
	case DirChatBound:
		delivered = r.sendToChat(msg)
	}
	if delivered {
		GetMetricsService().IncrementRelayDelivered()
	} else {
		GetMetricsService().IncrementRelayDropped()
	}

	r.notifySubscribers(msg)
}

func (r *ChatRelay) fanoutToApps(msg *Message) bool {
	r.regMu.RLock()
	receivers := append([]Receiver(nil), r.receivers[msg.Channel]...)
	r.regMu.RUnlock()

	delivered := false
	for _, receiver := range receivers {
		if !receiver.Running() {
			continue
		}
		if msg.AuthorID != "" && msg.Author != "" {
			GetNameCache().Remember(receiver.Scope(), msg.AuthorID, msg.Author)
		}
		clone := msg.Clone()
		clone.Content = GetNameCache().HumanizeMentions(receiver.Scope(), msg.Content)
		if err := receiver.Deliver(clone); err != nil {
			logger.Warnf("Delivery to app '%s' failed: %v", receiver.Name(), err)
			continue
		}
		delivered = true
	}
	return delivered
}

func (r *ChatRelay) sendToChat(msg *Message) bool {
	r.regMu.RLock()
	sender := r.sender
	r.regMu.RUnlock()

	if sender == nil {
		logger.Debugf("No chat sender configured, dropping message for channel '%s'", msg.Channel)
		return false
	}
	if msg.Author != "" {
		msg.Mentions = GetNameCache().ParseMentions(msg.App, msg.Content)
	}
	if err := sender.SendChat(msg.Channel, msg.ChatPayload()); err != nil {
		logger.Warnf("Chat delivery to channel '%s' failed: %v", msg.Channel, err)
		return false
	}
	return true
}

func (r *ChatRelay) notifySubscribers(msg *Message) {
	r.regMu.RLock()
	subscribers := make(map[string]func(*Message) error, len(r.subscribers))
	for label, handler := range r.subscribers {
		subscribers[label] = handler
	}
	r.regMu.RUnlock()

	for label, handler := range subscribers {
		if err := handler(msg); err != nil {
			logger.Warnf("Subscriber '%s' failed: %v", label, err)
		}
	}
}
