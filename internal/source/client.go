package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"xcard-backend/internal/config"
	"xcard-backend/internal/model"
	"xcard-backend/internal/utils"
	"xcard-backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

var allowedHosts = map[string]bool{
	"twitter.com":        true,
	"www.twitter.com":    true,
	"x.com":              true,
	"www.x.com":          true,
	"mobile.twitter.com": true,
	"mobile.x.com":       true,
}

var (
	statusPathRe = regexp.MustCompile(`/status/\d+`)
	statusIDRe   = regexp.MustCompile(`/status/(\d+)`)
	screenNameRe = regexp.MustCompile(`(?:x\.com|twitter\.com)/(\w+)/status`)

	// TweetURLRe 匹配消息中的推文链接
	TweetURLRe = regexp.MustCompile(`https?://(?:(?:www|mobile)\.)?(?:x|twitter)\.com/(?:i/web|\w+)/status/\d+`)
)

const timeLayout = "2006/1/2 15:04"

var taipei = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}()

// ValidateURL 检查 host 白名单和路径中的 /status/{id}，/i/web/status/{id} 也接受
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if !allowedHosts[strings.ToLower(u.Hostname())] {
		return fmt.Errorf("%w: host %q not allowed", model.ErrInvalidInput, u.Hostname())
	}
	if !statusPathRe.MatchString(u.Path) {
		return fmt.Errorf("%w: path %q is not a status", model.ErrInvalidInput, u.Path)
	}
	return nil
}

// ParseStatusID 返回链接中的推文 id，没有时返回空串
func ParseStatusID(raw string) string {
	m := statusIDRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// ScreenName 返回链接中的用户名，取不到时用 "i"
func ScreenName(raw string) string {
	m := screenNameRe.FindStringSubmatch(raw)
	if m == nil {
		return "i"
	}
	return m[1]
}

// ExtractURL 从任意文本中找出第一个推文链接
func ExtractURL(text string) string {
	return TweetURLRe.FindString(text)
}

// FormatCount 把互动数格式化为 1.2K / 3.4M，0 返回空串
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	case n > 0:
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}

type apiAuthor struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
	AvatarURL  string `json:"avatar_url"`
}

type apiPhoto struct {
	URL string `json:"url"`
}

type apiTweet struct {
	URL              string    `json:"url"`
	Text             string    `json:"text"`
	CreatedAt        string    `json:"created_at"`
	CreatedTimestamp int64     `json:"created_timestamp"`
	Author           apiAuthor `json:"author"`
	Likes            int64     `json:"likes"`
	Retweets         int64     `json:"retweets"`
	Replies          int64     `json:"replies"`
	Views            int64     `json:"views"`
	Media            *struct {
		Photos []apiPhoto `json:"photos"`
	} `json:"media"`
	Quote *apiTweet `json:"quote"`
}

type apiResponse struct {
	Code  int       `json:"code"`
	Tweet *apiTweet `json:"tweet"`
}

type Client struct {
	httpClient *http.Client
	apiBase    string
	timeout    time.Duration
}

func NewClient(cfg config.FetchConfig) *Client {
	return &Client{
		httpClient: utils.NewHTTPClient(cfg.Timeout),
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		timeout:    cfg.Timeout,
	}
}

// Fetch 校验链接并从内容 API 拉取推文
func (c *Client) Fetch(ctx context.Context, tweetURL string) (*model.PostData, error) {
	if err := ValidateURL(tweetURL); err != nil {
		return nil, err
	}

	statusID := ParseStatusID(tweetURL)
	if statusID == "" {
		return nil, fmt.Errorf("%w: no status id", model.ErrInvalidInput)
	}
	apiURL := fmt.Sprintf("%s/%s/status/%s", c.apiBase, ScreenName(tweetURL), statusID)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %v", model.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: content api status %d", model.ErrFetchFailed, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", model.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: decode: %v", model.ErrFetchFailed, err)
	}
	if body.Tweet == nil {
		return nil, fmt.Errorf("%w: no tweet data", model.ErrFetchFailed)
	}

	post := normalize(body.Tweet, tweetURL)
	logger.WithFields(logrus.Fields{
		"status_id": statusID,
		"handle":    post.Handle,
		"images":    len(post.Images),
	}).Debug("tweet fetched")

	return post, nil
}

func normalize(t *apiTweet, inputURL string) *model.PostData {
	post := &model.PostData{
		Text:        t.Text,
		DisplayName: t.Author.Name,
		Handle:      "@" + t.Author.ScreenName,
		AvatarURL:   t.Author.AvatarURL,
		TweetURL:    t.URL,
		CreatedAt:   t.CreatedAt,
		TimeText:    formatTime(t),
		Likes:       FormatCount(t.Likes),
		Retweets:    FormatCount(t.Retweets),
		Replies:     FormatCount(t.Replies),
		Views:       FormatCount(t.Views),
		Images:      []model.Image{},
	}
	if post.TweetURL == "" {
		post.TweetURL = inputURL
	}
	if t.Media != nil {
		for _, p := range t.Media.Photos {
			post.Images = append(post.Images, model.Image{Src: p.URL})
		}
	}
	if t.Quote != nil {
		post.QuoteTweet = &model.PostData{
			Text:        t.Quote.Text,
			DisplayName: t.Quote.Author.Name,
			Handle:      "@" + t.Quote.Author.ScreenName,
			AvatarURL:   t.Quote.Author.AvatarURL,
		}
	}
	return post
}

func formatTime(t *apiTweet) string {
	if t.CreatedTimestamp > 0 {
		return time.Unix(t.CreatedTimestamp, 0).In(taipei).Format(timeLayout)
	}
	if t.CreatedAt == "" {
		return ""
	}
	ts, err := time.Parse(time.RubyDate, t.CreatedAt)
	if err != nil {
		return ""
	}
	return ts.In(taipei).Format(timeLayout)
}
