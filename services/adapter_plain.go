package services

// funcMatcher 用函数实现LineMatcher
type funcMatcher struct {
	name string
	fn   func(line string) error
}

func (m *funcMatcher) Name() string            { return m.name }
func (m *funcMatcher) Match(line string) error { return m.fn(line) }

func NewMatcher(name string, fn func(line string) error) LineMatcher {
	return &funcMatcher{name: name, fn: fn}
}

/**
 * PlainAdapter 无管理协议的普通工作负载
 * @description
 * - 只跟随stdout，消息通过stdin写入
 * - 优雅关闭交给进程终止流程的SIGTERM
 */
type PlainAdapter struct{}

func (p *PlainAdapter) Name() string { return "plain" }

func (p *PlainAdapter) Matchers(app *AppInstance) []LineMatcher { return nil }

func (p *PlainAdapter) Deliver(app *AppInstance, msg *Message) error {
	return app.Process().WriteStdin(msg.GameLine())
}

func (p *PlainAdapter) GracefulStop(app *AppInstance) error { return nil }

func (p *PlainAdapter) Poll(app *AppInstance) {}

func init() {
	RegisterAdapter("plain", &PlainAdapter{})
}
