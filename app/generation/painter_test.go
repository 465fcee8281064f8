package generation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPlaceholderImage(t *testing.T) {
	a := PlaceholderImage("tech scene", "16:9")
	b := PlaceholderImage("tech scene", "16:9")
	if a != b {
		t.Error("placeholder should be deterministic for the same prompt and ratio")
	}

	if !strings.Contains(a, "/1024/576") {
		t.Errorf("16:9 should render wide: %q", a)
	}
	if tall := PlaceholderImage("tech scene", "3:4"); !strings.Contains(tall, "/768/1024") {
		t.Errorf("3:4 should render tall: %q", tall)
	}

	if PlaceholderImage("tech scene", "3:4") == a {
		t.Error("different ratios should seed different placeholders")
	}
}

func TestPainterRunWithoutBackend(t *testing.T) {
	painter := NewPainter(newTestClient(), "")
	url := painter.Run(context.Background(), "dashboard scene", "16:9")
	if !strings.HasPrefix(url, "https://picsum.photos/seed/") {
		t.Errorf("expected placeholder url, got %q", url)
	}
}

func TestPainterRunRemoteBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"image_url": "https://cdn.test/rendered.png"}`))
	}))
	defer server.Close()

	painter := NewPainter(newTestClient(), server.URL)
	url := painter.Run(context.Background(), "dashboard scene", "3:4")
	if url != "https://cdn.test/rendered.png" {
		t.Errorf("expected remote url, got %q", url)
	}
}

func TestPainterRunRemoteFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	painter := NewPainter(newTestClient(), server.URL)
	url := painter.Run(context.Background(), "dashboard scene", "16:9")
	if !strings.HasPrefix(url, "https://picsum.photos/seed/") {
		t.Errorf("expected placeholder after backend failure, got %q", url)
	}
}

func TestEnhancePrompt(t *testing.T) {
	enhanced := EnhancePrompt("大模型 推理 可视化 界面")
	if strings.ContainsAny(enhanced, "大模型推理") {
		t.Errorf("CJK should be translated or stripped: %q", enhanced)
	}
	if !strings.Contains(enhanced, "large language model") {
		t.Errorf("expected keyword translation: %q", enhanced)
	}
	if !strings.Contains(enhanced, "Tech-style illustration") {
		t.Errorf("model prompt should take the tech styling: %q", enhanced)
	}

	plain := EnhancePrompt("watercolor forest landscape")
	if !strings.Contains(plain, "Professional illustration") {
		t.Errorf("non-tech prompt should take the generic styling: %q", plain)
	}
	if !strings.Contains(plain, "no watermark") {
		t.Errorf("quality tags should always be appended: %q", plain)
	}

	if got := EnhancePrompt(""); !strings.Contains(got, defaultPrompt) {
		t.Errorf("empty prompt should use the default subject: %q", got)
	}
}
