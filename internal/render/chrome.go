package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xcard-backend/internal/card"
	"xcard-backend/internal/config"
	"xcard-backend/internal/model"
	"xcard-backend/pkg/logger"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

type chromeBrowser struct {
	cfg           config.RenderConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// ChromeLauncher 启动 headless Chrome
func ChromeLauncher(cfg config.RenderConfig) Launcher {
	return func() (Browser, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}

		// 浏览器的生命周期独立于任何一次请求
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			return nil, err
		}

		return &chromeBrowser{
			cfg:           cfg,
			allocCancel:   allocCancel,
			browserCtx:    browserCtx,
			browserCancel: browserCancel,
		}, nil
	}
}

func (b *chromeBrowser) Capture(ctx context.Context, doc card.Document) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkAlmostIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	var (
		fontsReady bool
		found      bool
		buf        []byte
	)
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(b.cfg.ViewportWidth, b.cfg.ViewportHeight),
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-idle:
			default:
			}
			return nil
		}),
		chromedp.Navigate(documentURL(doc.HTML)),
		waitNetworkIdle(idle, b.cfg.LoadTimeout),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady, awaitPromise),
		chromedp.Sleep(b.cfg.SettleDelay),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%q) !== null`, doc.Selector), &found),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !found {
				return fmt.Errorf("%w: element %s not found", model.ErrRenderFailed, doc.Selector)
			}
			return nil
		}),
		chromedp.Screenshot(doc.Selector, &buf, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// waitNetworkIdle 等待网络空闲，超时只记录警告
func waitNetworkIdle(idle <-chan struct{}, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-idle:
		case <-t.C:
			logger.Warnf("network idle not reached within %s, capturing anyway", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// Connected 只反映 context 状态，进程是否存活由 Ping 判断
func (b *chromeBrowser) Connected() bool {
	return b.browserCtx.Err() == nil
}

func (b *chromeBrowser) Ping(ctx context.Context) error {
	c := chromedp.FromContext(b.browserCtx)
	if c == nil || c.Browser == nil {
		return errors.New("browser not started")
	}
	_, _, _, _, _, err := browser.GetVersion().Do(cdp.WithExecutor(ctx, c.Browser))
	return err
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	return err
}
