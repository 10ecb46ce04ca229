package bot

import "sync/atomic"

// Guard 全局只允许一个卡片生成，不排队
type Guard struct {
	busy atomic.Bool
}

// TryAcquire 立即返回，已被占用时返回 false
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *Guard) Release() {
	g.busy.Store(false)
}
