package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"xcard-backend/internal/config"
	"xcard-backend/internal/utils"
)

const defaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

var errUnexpectedShape = errors.New("unexpected translate response structure")

// GoogleBackend 调用 gtx 免费翻译接口
type GoogleBackend struct {
	httpClient *http.Client
	endpoint   string
}

func NewGoogleBackend(cfg config.TranslateConfig) *GoogleBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultGoogleEndpoint
	}
	return &GoogleBackend{
		httpClient: utils.NewHTTPClient(cfg.Timeout),
		endpoint:   endpoint,
	}
}

func (b *GoogleBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate http %d", resp.StatusCode)
	}

	var result []any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	return joinSegments(result)
}

// joinSegments 拼接 result[0][i][0]
func joinSegments(result []any) (string, error) {
	if len(result) == 0 {
		return "", errUnexpectedShape
	}
	segments, ok := result[0].([]any)
	if !ok {
		return "", errUnexpectedShape
	}

	var sb strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			return "", errUnexpectedShape
		}
		if s, ok := parts[0].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}
