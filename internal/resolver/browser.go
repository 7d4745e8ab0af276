package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

const (
	downloaderURL      = "https://spotifydown.com/"
	inputSelector      = `input[placeholder="https://open.spotify.com/..../...."]`
	submitSelector     = `button[type="submit"]`
	downloadBtnSel     = `#__next > div > div.mt-5.m-auto.text-center > div.mb-12.grid.grid-cols-1.gap-3.m-auto > div > div.flex.items-center.justify-end > button`
	downloadLinkSel    = `a[download]`
	pageSettlePause    = time.Second
	defaultResolveWait = 90 * time.Second
)

// BrowserConfig configures the headless browser resolver.
type BrowserConfig struct {
	// PageURL is the downloader front page. Empty uses the default site.
	PageURL string
	// ExecPath is the chromium binary. Empty uses chromedp's default lookup.
	ExecPath string
	// Timeout bounds one resolution session.
	Timeout time.Duration
}

// Browser resolves track pages by driving a third-party downloader site in a
// headless browser. Sessions are serialized; the downloader tolerates only
// one interaction at a time per browser profile.
type Browser struct {
	cfg BrowserConfig
	log *logger.Logger
	mu  sync.Mutex
}

func NewBrowser(cfg BrowserConfig, log *logger.Logger) *Browser {
	if cfg.PageURL == "" {
		cfg.PageURL = downloaderURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultResolveWait
	}
	return &Browser{cfg: cfg, log: log.WithComponent("browser")}
}

func (b *Browser) Resolve(ctx context.Context, sourceRef string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var href string
	var ok bool
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(b.cfg.PageURL),
		chromedp.WaitVisible(inputSelector),
		chromedp.SendKeys(inputSelector, sourceRef),
		chromedp.WaitVisible(submitSelector),
		chromedp.Click(submitSelector),
		chromedp.Sleep(pageSettlePause),
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
		chromedp.Sleep(pageSettlePause),
		chromedp.WaitVisible(downloadBtnSel),
		chromedp.Click(downloadBtnSel),
		chromedp.WaitVisible(downloadLinkSel),
		chromedp.AttributeValue(downloadLinkSel, "href", &href, &ok),
	)
	if err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeResolution, "browser.Resolve",
			"driving downloader page for "+sourceRef)
	}
	if !ok || strings.TrimSpace(href) == "" {
		return "", apperrors.New(apperrors.CodeResolution, "download link had no href")
	}

	b.log.Info("source resolved", "source_ref", sourceRef, "duration_ms", time.Since(start).Milliseconds())
	return href, nil
}
