package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/APasz/Yukibot/internal/models"
)

// fakeReceiver 测试用接收端
type fakeReceiver struct {
	name    string
	scope   string
	running bool
	fail    bool

	mu       sync.Mutex
	received []*Message
}

func (r *fakeReceiver) Name() string  { return r.name }
func (r *fakeReceiver) Scope() string { return r.scope }
func (r *fakeReceiver) Running() bool { return r.running }

func (r *fakeReceiver) Deliver(msg *Message) error {
	if r.fail {
		return fmt.Errorf("receiver %s is broken", r.name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, msg)
	return nil
}

func (r *fakeReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// fakeSender 测试用聊天平台投递端
type fakeSender struct {
	fail bool

	mu       sync.Mutex
	channels []string
	payloads []*models.ChatPayload
}

func (s *fakeSender) SendChat(channel string, payload *models.ChatPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sender is broken")
	}
	s.channels = append(s.channels, channel)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *fakeSender) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// orderSubscriber 记录消息经过relay的顺序
type orderSubscriber struct {
	mu       sync.Mutex
	contents []string
}

func (o *orderSubscriber) handle(msg *Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.contents = append(o.contents, msg.Content)
	return nil
}

func (o *orderSubscriber) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.contents...)
}

/**
 * 测试FIFO顺序：消息按入队顺序被处理
 */
func TestRelayFIFOOrder(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	order := &orderSubscriber{}
	relay.RegisterSubscriber("order", order.handle)

	for i := 0; i < 10; i++ {
		relay.Add(NewChatBound("app", "chan", "alice", fmt.Sprintf("msg-%d", i)))
	}

	waitFor(t, 2*time.Second, func() bool { return len(order.snapshot()) == 10 })
	contents := order.snapshot()
	for i, content := range contents {
		expected := fmt.Sprintf("msg-%d", i)
		if content != expected {
			t.Errorf("Expected %q at position %d, got %q", expected, i, content)
		}
	}
}

/**
 * 测试同一频道注册两个应用时消息扇出到全部
 */
func TestRelayFanoutToMultipleApps(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	first := &fakeReceiver{name: "first", scope: "game", running: true}
	second := &fakeReceiver{name: "second", scope: "game", running: true}
	stopped := &fakeReceiver{name: "stopped", scope: "game", running: false}
	relay.RegisterReceiver("chan1", first)
	relay.RegisterReceiver("chan1", second)
	relay.RegisterReceiver("chan1", stopped)

	relay.HandleInbound(&models.ChatEvent{
		MessageID:  "m1",
		ChannelID:  "chan1",
		AuthorID:   "u1",
		AuthorName: "alice",
		Content:    "hello games",
	})

	waitFor(t, 2*time.Second, func() bool {
		return first.count() == 1 && second.count() == 1
	})
	if stopped.count() != 0 {
		t.Error("Stopped receiver must not get messages")
	}
}

/**
 * 测试单个应用投递失败不影响其他应用与订阅者
 */
func TestRelayDeliveryFailureIsolation(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	broken := &fakeReceiver{name: "broken", scope: "game", running: true, fail: true}
	healthy := &fakeReceiver{name: "healthy", scope: "game", running: true}
	relay.RegisterReceiver("chan1", broken)
	relay.RegisterReceiver("chan1", healthy)

	failingSub := func(msg *Message) error { return fmt.Errorf("subscriber error") }
	order := &orderSubscriber{}
	relay.RegisterSubscriber("failing", failingSub)
	relay.RegisterSubscriber("order", order.handle)

	relay.HandleInbound(&models.ChatEvent{
		MessageID: "m2",
		ChannelID: "chan1",
		AuthorID:  "u1",
		Content:   "still works",
	})

	waitFor(t, 2*time.Second, func() bool {
		return healthy.count() == 1 && len(order.snapshot()) == 1
	})
}

/**
 * 测试重复消息ID只处理一次
 */
func TestRelayDeduplication(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	receiver := &fakeReceiver{name: "app", scope: "game", running: true}
	relay.RegisterReceiver("chan1", receiver)

	event := &models.ChatEvent{
		MessageID: "dup-1",
		ChannelID: "chan1",
		AuthorID:  "u1",
		Content:   "once only",
	}
	relay.HandleInbound(event)
	relay.HandleInbound(event)
	relay.HandleInbound(event)

	waitFor(t, 2*time.Second, func() bool { return receiver.count() == 1 })
	time.Sleep(100 * time.Millisecond)
	if receiver.count() != 1 {
		t.Errorf("Expected exactly 1 delivery, got %d", receiver.count())
	}
}

/**
 * 测试机器人消息与命令前缀消息不被中继
 */
func TestRelayIgnoresBotsAndCommands(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	receiver := &fakeReceiver{name: "app", scope: "game", running: true}
	relay.RegisterReceiver("chan1", receiver)

	relay.HandleInbound(&models.ChatEvent{
		MessageID: "b1", ChannelID: "chan1", Content: "beep boop", Bot: true,
	})
	relay.HandleInbound(&models.ChatEvent{
		MessageID: "c1", ChannelID: "chan1", Content: "//status",
	})
	relay.HandleInbound(&models.ChatEvent{
		MessageID: "ok1", ChannelID: "chan1", AuthorID: "u1", Content: "real message",
	})

	waitFor(t, 2*time.Second, func() bool { return receiver.count() == 1 })
	receiver.mu.Lock()
	content := receiver.received[0].Content
	receiver.mu.Unlock()
	if content != "real message" {
		t.Errorf("Expected only the real message, got %q", content)
	}
}

/**
 * 测试chatbound消息投递到聊天平台，失败时丢弃不重试
 */
func TestRelaySendToChat(t *testing.T) {
	relay := NewChatRelay()
	relay.Start()
	defer relay.Stop()

	sender := &fakeSender{}
	relay.SetSender(sender)
	processed := &orderSubscriber{}
	relay.RegisterSubscriber("processed", processed.handle)

	relay.Add(NewChatBound("app1", "chan9", "bob", "from the game"))

	waitFor(t, 2*time.Second, func() bool { return sender.count() == 1 })
	sender.mu.Lock()
	channel := sender.channels[0]
	content := sender.payloads[0].Content
	sender.mu.Unlock()
	if channel != "chan9" {
		t.Errorf("Expected channel chan9, got %s", channel)
	}
	if content != "from the game" {
		t.Errorf("Unexpected payload content %q", content)
	}

	// 投递失败只丢弃，消费循环继续
	sender.setFail(true)
	relay.Add(NewChatBound("app1", "chan9", "bob", "dropped"))
	waitFor(t, 2*time.Second, func() bool { return len(processed.snapshot()) == 2 })
	sender.setFail(false)
	relay.Add(NewChatBound("app1", "chan9", "bob", "after failure"))

	waitFor(t, 2*time.Second, func() bool { return sender.count() == 2 })
}

/**
 * 测试通用事件模板与应用级覆盖
 */
func TestGenericTemplates(t *testing.T) {
	msg := NewGeneric("Sevendays Main", "chan1", "join",
		map[string]string{"player": "alice"}, nil)
	if msg.Content != "alice joined Sevendays Main" {
		t.Errorf("Unexpected join message: %q", msg.Content)
	}

	msg = NewGeneric("Factorio", "chan1", "left",
		map[string]string{"player": "bob"}, nil)
	if msg.Content != "bob left Factorio" {
		t.Errorf("Unexpected left message: %q", msg.Content)
	}

	overrides := map[string]string{"join": "welcome {player}!"}
	msg = NewGeneric("Factorio", "chan1", "join",
		map[string]string{"player": "carol"}, overrides)
	if msg.Content != "welcome carol!" {
		t.Errorf("Expected override template, got %q", msg.Content)
	}

	msg = NewGeneric("Factorio", "chan1", "died_pvp",
		map[string]string{"player": "dave", "killer": "eve"}, nil)
	if msg.Content != "dave was slain by eve" {
		t.Errorf("Unexpected death message: %q", msg.Content)
	}
}
