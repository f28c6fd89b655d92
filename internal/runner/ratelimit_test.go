package runner

import "testing"

func TestParseWaitSeconds(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    int
	}{
		{name: "minutes", message: "Please try again in 5 minutes.", want: 300},
		{name: "single minute", message: "try again in 1 min", want: 60},
		{name: "seconds", message: "please wait 45 seconds", want: 45},
		{name: "hours", message: "You can try again in 2 hours", want: 7200},
		{name: "chinese minutes", message: "请等待 3 分钟后重试", want: 180},
		{name: "chinese seconds", message: "请稍后 30 秒", want: 30},
		{name: "chinese hours", message: "请等待 1 小时", want: 3600},
		{name: "mixed case", message: "Try Again In 10 Minutes", want: 600},
		{name: "no duration", message: "rate limit reached", want: 0},
		{name: "empty", message: "", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseWaitSeconds(tc.message); got != tc.want {
				t.Fatalf("ParseWaitSeconds(%q) = %d, want %d", tc.message, got, tc.want)
			}
		})
	}
}

func TestDetectRateLimit(t *testing.T) {
	t.Run("phrase with duration", func(t *testing.T) {
		sig, ok := DetectRateLimit("Something happened.\nYou hit the rate limit, try again in 10 minutes.\nFooter")
		if !ok {
			t.Fatal("expected detection")
		}
		if sig.WaitSeconds != 600 {
			t.Fatalf("WaitSeconds = %d, want 600", sig.WaitSeconds)
		}
		if sig.Message != "You hit the rate limit, try again in 10 minutes." {
			t.Fatalf("Message = %q", sig.Message)
		}
	})

	t.Run("phrase without duration uses default", func(t *testing.T) {
		sig, ok := DetectRateLimit("Too many requests")
		if !ok {
			t.Fatal("expected detection")
		}
		if sig.WaitSeconds != DefaultRateLimitSeconds {
			t.Fatalf("WaitSeconds = %d, want %d", sig.WaitSeconds, DefaultRateLimitSeconds)
		}
	})

	t.Run("chinese phrase", func(t *testing.T) {
		if _, ok := DetectRateLimit("请求过于频繁，请稍后再试"); !ok {
			t.Fatal("expected detection for chinese phrasing")
		}
	})

	t.Run("clean text", func(t *testing.T) {
		if _, ok := DetectRateLimit("Here are your generated images."); ok {
			t.Fatal("unexpected detection")
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if _, ok := DetectRateLimit("   "); ok {
			t.Fatal("unexpected detection for blank text")
		}
	})
}

func TestIsAuthFailure(t *testing.T) {
	if !IsAuthFailure("Not logged in, please sign in first") {
		t.Fatal("expected auth failure detection")
	}
	if IsAuthFailure("generation timed out") {
		t.Fatal("unexpected auth failure detection")
	}
}
