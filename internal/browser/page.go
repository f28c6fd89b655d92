package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const pollInterval = 300 * time.Millisecond

// mustJSON encodes v as a JS literal for embedding in an Evaluate
// expression. v is always locally constructed, so encoding cannot fail.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("browser: encode js literal: %v", err))
	}
	return string(b)
}

// firstVisible returns the first selector in selectors that matches a
// rendered element, or "" when none does.
func firstVisible(ctx context.Context, selectors []string) (string, error) {
	expr := fmt.Sprintf(`(%s).find((s) => {
  try {
    const el = document.querySelector(s);
    return !!el && el.getClientRects().length > 0;
  } catch (e) { return false; }
}) || ""`, mustJSON(selectors))

	var sel string
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &sel)); err != nil {
		return "", err
	}
	return sel, nil
}

// anyVisible reports whether at least one of selectors matches a
// rendered element.
func anyVisible(ctx context.Context, selectors []string) (bool, error) {
	sel, err := firstVisible(ctx, selectors)
	return sel != "", err
}

// waitAnyVisible polls until one of selectors renders or timeout
// elapses. It returns the matching selector, or "" on timeout.
func waitAnyVisible(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		sel, err := firstVisible(ctx, selectors)
		if err != nil {
			return "", err
		}
		if sel != "" {
			return sel, nil
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// clickFirst clicks the first rendered element among selectors and
// reports whether anything was clicked.
func clickFirst(ctx context.Context, selectors []string) (bool, error) {
	sel, err := firstVisible(ctx, selectors)
	if err != nil || sel == "" {
		return false, err
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return false, err
	}
	return true, nil
}

// bodyText returns the rendered text of the page body.
func bodyText(ctx context.Context) (string, error) {
	var txt string
	err := chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &txt))
	return txt, err
}

// imageSources collects the src attributes of all result images
// currently in the transcript, in document order and deduplicated.
func imageSources(ctx context.Context, selectors []string) ([]string, error) {
	expr := fmt.Sprintf(`(() => {
  const seen = new Set();
  const out = [];
  for (const s of %s) {
    let els = [];
    try { els = document.querySelectorAll(s); } catch (e) { continue; }
    for (const el of els) {
      const src = el.currentSrc || el.src || "";
      if (src && !seen.has(src)) { seen.add(src); out.push(src); }
    }
  }
  return out;
})()`, mustJSON(selectors))

	var srcs []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &srcs)); err != nil {
		return nil, err
	}
	return srcs, nil
}

// fetchImageData downloads src from inside the page, reusing the
// page's cookies and blob URLs, and returns the raw bytes plus a file
// extension derived from the MIME type.
func fetchImageData(ctx context.Context, src string) ([]byte, string, error) {
	expr := fmt.Sprintf(`(async () => {
  const resp = await fetch(%s);
  if (!resp.ok) throw new Error("fetch status " + resp.status);
  const blob = await resp.blob();
  return await new Promise((resolve, reject) => {
    const reader = new FileReader();
    reader.onload = () => resolve(reader.result);
    reader.onerror = () => reject(reader.error || new Error("read failed"));
    reader.readAsDataURL(blob);
  });
})()`, mustJSON(src))

	var dataURL string
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, &dataURL,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, "", fmt.Errorf("fetch image in page: %w", err)
	}
	return decodeDataURL(dataURL)
}

// decodeDataURL splits a data: URL into raw bytes and a file extension
// guessed from its MIME type.
func decodeDataURL(dataURL string) ([]byte, string, error) {
	const marker = ";base64,"
	idx := strings.Index(dataURL, marker)
	if !strings.HasPrefix(dataURL, "data:") || idx < 0 {
		return nil, "", fmt.Errorf("unexpected data url prefix %q", truncateForLog(dataURL))
	}
	mime := dataURL[len("data:"):idx]
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(marker):])
	if err != nil {
		return nil, "", fmt.Errorf("decode image payload: %w", err)
	}
	return raw, extForMIME(mime), nil
}

func extForMIME(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func truncateForLog(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
