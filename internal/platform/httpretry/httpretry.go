// Package httpretry 后端 HTTP 调用的瞬态故障重试：
// 有限次数、固定间隔，只针对网络错误与 429/5xx。
// 与搜索层的校验重试循环无关，是更低一层的关注点。
package httpretry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Do 执行请求，失败时最多重试 attempts-1 次，每次间隔 delay。
// build 在每次尝试时重新构造请求（请求体不可复用）。
// 返回的响应由调用方负责关闭。
func Do(ctx context.Context, client *http.Client, build func() (*http.Request, error), attempts int, delay time.Duration) (*http.Response, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			continue
		}
		if retryable(resp.StatusCode) && attempt < attempts-1 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
