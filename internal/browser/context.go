package browser

import (
	"context"
)

// CombineContext derives a context from primary, which carries the chromedp
// tab, that is also cancelled when secondary is done. Values come from
// primary only.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
