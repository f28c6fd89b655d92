package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name    string
		dataURL string
		want    string
		wantExt string
		wantErr bool
	}{
		{
			name:    "png payload",
			dataURL: "data:image/png;base64,aGVsbG8=",
			want:    "hello",
			wantExt: ".png",
		},
		{
			name:    "jpeg payload",
			dataURL: "data:image/jpeg;base64,d29ybGQ=",
			want:    "world",
			wantExt: ".jpg",
		},
		{
			name:    "missing base64 marker",
			dataURL: "data:image/png,rawbytes",
			wantErr: true,
		},
		{
			name:    "not a data url",
			dataURL: "https://example.com/a.png",
			wantErr: true,
		},
		{
			name:    "corrupt payload",
			dataURL: "data:image/png;base64,!!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ext, err := decodeDataURL(tt.dataURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeDataURL(%q) expected error, got %q", tt.dataURL, raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeDataURL(%q) unexpected error: %v", tt.dataURL, err)
			}
			if string(raw) != tt.want {
				t.Errorf("payload = %q, want %q", raw, tt.want)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestExtForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", ".jpg"},
		{"image/jpg", ".jpg"},
		{"image/webp", ".webp"},
		{"image/gif", ".gif"},
		{"image/png", ".png"},
		{"application/octet-stream", ".png"},
	}
	for _, tt := range tests {
		if got := extForMIME(tt.mime); got != tt.want {
			t.Errorf("extForMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestSanitizeBrowserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "missing chrome binary",
			err:  errors.New(`exec: "google-chrome": executable file not found in $PATH`),
			want: "chrome or chromium not found, install a browser to run live generation",
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: "browser operation timed out",
		},
		{
			name: "multiline keeps first line",
			err:  errors.New("boom on page\nstack frame one\nstack frame two"),
			want: "boom on page",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeBrowserError(tt.err); got != tt.want {
				t.Errorf("sanitizeBrowserError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeBrowserErrorTruncates(t *testing.T) {
	long := errors.New(strings.Repeat("x", 500))
	if got := sanitizeBrowserError(long); len(got) != 300 {
		t.Fatalf("len = %d, want 300", len(got))
	}
}

func TestMustJSONEscapes(t *testing.T) {
	got := mustJSON([]string{`a"b`, "</script>"})
	if strings.Contains(got, "</script>") {
		t.Fatalf("mustJSON left raw script close tag: %s", got)
	}
	if !strings.Contains(got, `a\"b`) {
		t.Fatalf("mustJSON did not escape quote: %s", got)
	}
}
