package blobstore

import (
	"testing"

	"github.com/bigkaa/quickshare/internal/domain/model"
)

func TestDetectKind(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	mp3 := []byte("ID3\x03\x00\x00\x00\x00\x00\x00")

	tests := []struct {
		name     string
		head     []byte
		wantKind model.ResourceKind
		wantType string
	}{
		{"png", png, model.KindImage, "image/png"},
		{"mp3 считается video", mp3, model.KindVideo, "audio/mpeg"},
		{"текст", []byte("hello"), model.KindRaw, "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ct := DetectKind(tt.head)
			if kind != tt.wantKind {
				t.Errorf("категория: ожидалось %q, получено %q", tt.wantKind, kind)
			}
			if ct != tt.wantType {
				t.Errorf("MIME-тип: ожидалось %q, получено %q", tt.wantType, ct)
			}
		})
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"http://localhost:5000/files", "raw/a.txt", "http://localhost:5000/files/raw/a.txt"},
		{"http://localhost:5000/files/", "image/фото 1.png", "http://localhost:5000/files/image/%D1%84%D0%BE%D1%82%D0%BE%201.png"},
		{"https://cdn.example.com", "video/x.mp4", "https://cdn.example.com/video/x.mp4"},
	}
	for _, tt := range tests {
		if got := JoinURL(tt.base, tt.key); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, ожидалось %q", tt.base, tt.key, got, tt.want)
		}
	}
}
