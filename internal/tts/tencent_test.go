package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTencentTestProvider(t *testing.T, handler http.HandlerFunc) *TencentProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewTencentProvider(TencentConfig{
		SecretID:  "id",
		SecretKey: "key",
		VoiceType: 1001,
		Endpoint:  server.URL,
	})
	if err != nil {
		t.Fatalf("NewTencentProvider failed: %v", err)
	}
	return p
}

func TestNewTencentProvider_RequiresCredentials(t *testing.T) {
	if _, err := NewTencentProvider(TencentConfig{SecretID: "id"}); err == nil {
		t.Fatal("expected error without SecretKey")
	}
}

func TestTencentProvider_Synthesize(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	var body map[string]any
	var action string

	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		action = r.Header.Get("X-TC-Action")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		fmt.Fprintf(w, `{"Response":{"Audio":%q,"SessionId":"mindcast-2","RequestId":"r1"}}`,
			base64.StdEncoding.EncodeToString(pcm))
	})

	res, err := p.Synthesize(context.Background(), Request{
		Text:       "Breathe.",
		Voice:      "101001",
		Continuity: &Continuity{ChunkIndex: 2, TotalChunks: 3},
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if action != "TextToVoice" {
		t.Errorf("action = %q, want TextToVoice", action)
	}
	if body["Codec"] != "pcm" || body["Text"] != "Breathe." || body["SessionId"] != "mindcast-2" {
		t.Errorf("unexpected request body: %v", body)
	}
	// 数字音色覆盖配置中的默认值
	if v, _ := body["VoiceType"].(float64); v != 101001 {
		t.Errorf("VoiceType = %v, want 101001", body["VoiceType"])
	}
	if string(res.Audio) != string(pcm) {
		t.Errorf("audio = %v, want %v", res.Audio, pcm)
	}
	if res.ContainerHint != "audio/pcm;rate=16000" {
		t.Errorf("hint = %q", res.ContainerHint)
	}
}

func TestTencentProvider_NonNumericVoiceUsesDefault(t *testing.T) {
	var body map[string]any
	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		fmt.Fprintf(w, `{"Response":{"Audio":%q,"RequestId":"r1"}}`, base64.StdEncoding.EncodeToString([]byte{0, 0}))
	})

	if _, err := p.Synthesize(context.Background(), Request{Text: "Hi.", Voice: "Kore"}); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if v, _ := body["VoiceType"].(float64); v != 1001 {
		t.Errorf("VoiceType = %v, want 1001", body["VoiceType"])
	}
}

func TestTencentProvider_RateLimited(t *testing.T) {
	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Response":{"Error":{"Code":"RequestLimitExceeded","Message":"too many"},"RequestId":"r2"}}`)
	})

	_, err := p.Synthesize(context.Background(), Request{Text: "Hi."})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrProviderRateLimited) || !IsRateLimited(err) {
		t.Errorf("expected rate limited error, got %v", err)
	}
}

func TestTencentProvider_EmptyAudio(t *testing.T) {
	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Response":{"Audio":"","RequestId":"r3"}}`)
	})

	_, err := p.Synthesize(context.Background(), Request{Text: "Hi."})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != 200 {
		t.Errorf("expected ProviderError 200, got %v", err)
	}
}

func TestTencentProvider_ErrorCarriesStatusAndCode(t *testing.T) {
	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Response":{"Error":{"Code":"AuthFailure.SecretIdNotFound","Message":"bad id"},"RequestId":"r4"}}`)
	})

	_, err := p.Synthesize(context.Background(), Request{Text: "Hi."})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusUnauthorized || pe.Code != "AuthFailure.SecretIdNotFound" {
		t.Errorf("status=%d code=%q, want 401 AuthFailure.SecretIdNotFound", pe.Status, pe.Code)
	}
	if IsRateLimited(err) {
		t.Error("auth failure must not be rate limited")
	}
}

func TestTencentProvider_HTTPStatusError(t *testing.T) {
	p := newTencentTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusServiceUnavailable)
	})

	_, err := p.Synthesize(context.Background(), Request{Text: "Hi."})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", pe.Status)
	}
}

func TestTencentStatus(t *testing.T) {
	tests := []struct {
		code    string
		message string
		want    int
	}{
		{"RequestLimitExceeded", "", 429},
		{"RequestLimitExceeded.UinLimitExceeded", "", 429},
		{"AuthFailure.SignatureFailure", "", 401},
		{"UnauthorizedOperation", "", 401},
		{"ResourceUnavailable.InArrears", "", 503},
		{"InternalError", "", 500},
		{"InvalidParameterValue.Text", "", 400},
		{"ClientError.HttpStatusCodeError", "Request fail with http status code: 502 Bad Gateway, with body: x", 502},
		{"ClientError.HttpStatusCodeError", "no status here", 502},
	}
	for _, tt := range tests {
		if got := tencentStatus(tt.code, tt.message); got != tt.want {
			t.Errorf("tencentStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
