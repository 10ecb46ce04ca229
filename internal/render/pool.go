package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"xcard-backend/internal/card"
	"xcard-backend/internal/model"
	"xcard-backend/pkg/logger"
)

var ErrPoolClosed = errors.New("render pool closed")

const pingTimeout = 3 * time.Second

// Browser 是一个已启动的浏览器进程
type Browser interface {
	Capture(ctx context.Context, doc card.Document) ([]byte, error)
	Connected() bool
	Ping(ctx context.Context) error
	Close() error
}

// Launcher 启动一个新的浏览器进程
type Launcher func() (Browser, error)

// launch 是一次进行中的启动，所有等待者共享结果
type launch struct {
	done    chan struct{}
	browser Browser
	err     error
}

// Pool 持有一个长期复用的浏览器，断开后按需重新启动
type Pool struct {
	launcher Launcher

	mu        sync.Mutex
	browser   Browser
	launching *launch
	closed    bool
}

func NewPool(launcher Launcher) *Pool {
	return &Pool{launcher: launcher}
}

// Ensure 返回可用的浏览器，必要时启动或等待进行中的启动
func (p *Pool) Ensure(ctx context.Context) (Browser, error) {
	p.mu.Lock()
	cached := p.browser
	p.mu.Unlock()

	// 进程崩溃后 context 不会被取消，复用前先 ping 一次
	if cached != nil {
		if alive(ctx, cached) {
			return cached, nil
		}
		p.mu.Lock()
		if p.browser == cached {
			p.browser = nil
			logger.Warn("cached browser is not responding, relaunching")
			go cached.Close()
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if b := p.browser; b != nil {
		p.mu.Unlock()
		return b, nil
	}
	l := p.launching
	if l == nil {
		l = &launch{done: make(chan struct{})}
		p.launching = l
		go p.launch(l)
	}
	p.mu.Unlock()

	select {
	case <-l.done:
		return l.browser, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func alive(ctx context.Context, b Browser) bool {
	if !b.Connected() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return b.Ping(ctx) == nil
}

func (p *Pool) launch(l *launch) {
	b, err := p.launcher()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.launching = nil
	switch {
	case err != nil:
		logger.Errorf("browser launch failed: %v", err)
		l.err = fmt.Errorf("launch browser: %w", err)
	case p.closed:
		_ = b.Close()
		l.err = ErrPoolClosed
	default:
		logger.Info("browser launched")
		p.browser = b
		l.browser = b
	}
	close(l.done)
}

// Render 在新标签页中渲染文档并截取卡片区域
func (p *Pool) Render(ctx context.Context, doc card.Document) ([]byte, error) {
	b, err := p.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	img, err := b.Capture(ctx, doc)
	if err == nil && len(img) == 0 {
		err = model.ErrRenderFailed
	}
	if err != nil {
		p.checkHealth(b)
		if errors.Is(err, model.ErrRenderFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrRenderFailed, err)
	}
	return img, nil
}

// checkHealth 渲染失败后确认浏览器是否还在，不在则丢弃引用
func (p *Pool) checkHealth(b Browser) {
	if alive(context.Background(), b) {
		return
	}

	p.mu.Lock()
	if p.browser == b {
		p.browser = nil
	}
	p.mu.Unlock()

	logger.Warn("browser disconnected, will relaunch on next render")
	_ = b.Close()
}

// Close 关闭浏览器，可重复调用
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	b := p.browser
	p.browser = nil
	p.mu.Unlock()

	if b == nil {
		return
	}
	if err := b.Close(); err != nil {
		logger.Debugf("browser close: %v", err)
	}
	logger.Info("browser closed")
}
