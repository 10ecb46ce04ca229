package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"xcard-backend/internal/card"
	"xcard-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	id         int
	captureErr error
	image      []byte
	pingErr    error
	connected  atomic.Bool
	closed     atomic.Int32
}

func (b *fakeBrowser) Capture(ctx context.Context, doc card.Document) ([]byte, error) {
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	return b.image, nil
}

func (b *fakeBrowser) Connected() bool { return b.connected.Load() }

func (b *fakeBrowser) Ping(ctx context.Context) error { return b.pingErr }

func (b *fakeBrowser) Close() error {
	b.closed.Add(1)
	b.connected.Store(false)
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	delay    time.Duration
	err      error
	setup    func(*fakeBrowser)
}

func (l *fakeLauncher) Launch() (Browser, error) {
	time.Sleep(l.delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{id: len(l.launched) + 1, image: []byte("png")}
	b.connected.Store(true)
	if l.setup != nil {
		l.setup(b)
	}
	l.launched = append(l.launched, b)
	return b, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

var doc = card.Document{HTML: "<div class=\"tm-xpng-stage\"></div>", Selector: card.StageSelector}

func TestPool_ConcurrentEnsureLaunchesOnce(t *testing.T) {
	l := &fakeLauncher{delay: 50 * time.Millisecond}
	p := NewPool(l.Launch)
	defer p.Close()

	var wg sync.WaitGroup
	browsers := make([]Browser, 10)
	for i := range browsers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Ensure(context.Background())
			assert.NoError(t, err)
			browsers[i] = b
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, l.count())
	for _, b := range browsers {
		assert.Same(t, browsers[0], b)
	}
}

func TestPool_RenderReusesBrowser(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l.Launch)
	defer p.Close()

	for i := 0; i < 3; i++ {
		img, err := p.Render(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), img)
	}
	assert.Equal(t, 1, l.count())
}

func TestPool_LaunchFailureIsRetried(t *testing.T) {
	l := &fakeLauncher{err: errors.New("no chrome")}
	p := NewPool(l.Launch)
	defer p.Close()

	_, err := p.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chrome")

	l.mu.Lock()
	l.err = nil
	l.mu.Unlock()

	b, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestPool_RelaunchAfterDisconnect(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l.Launch)
	defer p.Close()

	b1, err := p.Ensure(context.Background())
	require.NoError(t, err)
	b1.(*fakeBrowser).connected.Store(false)

	b2, err := p.Ensure(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	assert.Equal(t, 2, l.count())
}

func TestPool_FailedRenderWithDeadBrowserClearsReference(t *testing.T) {
	l := &fakeLauncher{setup: func(b *fakeBrowser) {
		if b.id == 1 {
			b.captureErr = errors.New("target closed")
			b.pingErr = errors.New("websocket closed")
		}
	}}
	p := NewPool(l.Launch)
	defer p.Close()

	_, err := p.Render(context.Background(), doc)
	assert.ErrorIs(t, err, model.ErrRenderFailed)
	assert.True(t, strings.Contains(err.Error(), "target closed"))

	img, err := p.Render(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)
	assert.Equal(t, 2, l.count())
	assert.EqualValues(t, 1, l.launched[0].closed.Load())
}

func TestPool_FailedRenderWithHealthyBrowserKeepsIt(t *testing.T) {
	l := &fakeLauncher{setup: func(b *fakeBrowser) {
		b.captureErr = errors.New("bad html")
	}}
	p := NewPool(l.Launch)
	defer p.Close()

	_, err := p.Render(context.Background(), doc)
	assert.ErrorIs(t, err, model.ErrRenderFailed)
	_, err = p.Render(context.Background(), doc)
	assert.ErrorIs(t, err, model.ErrRenderFailed)
	assert.Equal(t, 1, l.count())
}

func TestPool_EmptyImageIsRenderFailure(t *testing.T) {
	l := &fakeLauncher{setup: func(b *fakeBrowser) { b.image = nil }}
	p := NewPool(l.Launch)
	defer p.Close()

	_, err := p.Render(context.Background(), doc)
	assert.ErrorIs(t, err, model.ErrRenderFailed)
}

func TestPool_EnsureHonorsContext(t *testing.T) {
	l := &fakeLauncher{delay: 200 * time.Millisecond}
	p := NewPool(l.Launch)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Ensure(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l.Launch)

	_, err := p.Ensure(context.Background())
	require.NoError(t, err)

	p.Close()
	p.Close()
	assert.EqualValues(t, 1, l.launched[0].closed.Load())

	_, err = p.Render(context.Background(), doc)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestDocumentURL(t *testing.T) {
	assert.True(t, strings.HasPrefix(documentURL("<p>hi</p>"), "data:text/html;charset=utf-8;base64,"))
}

func TestPool_EnsureRelaunchesUnresponsiveBrowser(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l.Launch)
	defer p.Close()

	b1, err := p.Ensure(context.Background())
	require.NoError(t, err)
	// 进程已退出但 context 仍然有效
	b1.(*fakeBrowser).pingErr = errors.New("websocket closed")

	img, err := p.Render(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)
	assert.Equal(t, 2, l.count())
	assert.Eventually(t, func() bool { return l.launched[0].closed.Load() == 1 }, time.Second, time.Millisecond)
}
