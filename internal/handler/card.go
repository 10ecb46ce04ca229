package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"xcard-backend/internal/model"
	"xcard-backend/internal/source"
	"xcard-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Cards 是 HTTP 接口依赖的卡片服务
type Cards interface {
	Generate(ctx context.Context, tweetURL string) (*model.PostData, []byte, error)
	Fetch(ctx context.Context, tweetURL string) (*model.PostData, error)
	SocialFromURL(ctx context.Context, tweetURL string) (*model.PostData, string, error)
}

type CardHandler struct {
	cards Cards
}

func NewCardHandler(cards Cards) *CardHandler {
	return &CardHandler{cards: cards}
}

// Register 挂载 /api 下的路由
func (h *CardHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/generate", h.Generate)
		api.POST("/fetch", h.Fetch)
		api.POST("/social", h.Social)
	}
}

func (h *CardHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Service: "xcard"})
}

func (h *CardHandler) Generate(c *gin.Context) {
	tweetURL, ok := bindTweetURL(c)
	if !ok {
		return
	}

	post, img, err := h.cards.Generate(c.Request.Context(), tweetURL)
	if err != nil {
		fail(c, "generate", err)
		return
	}

	c.JSON(http.StatusOK, model.GenerateResponse{
		Success: true,
		Image:   base64.StdEncoding.EncodeToString(img),
		Metadata: model.CardMetadata{
			DisplayName: post.DisplayName,
			Handle:      post.Handle,
			Text:        post.Text,
			TweetURL:    post.TweetURL,
			Likes:       post.Likes,
			Retweets:    post.Retweets,
		},
	})
}

func (h *CardHandler) Fetch(c *gin.Context) {
	tweetURL, ok := bindTweetURL(c)
	if !ok {
		return
	}

	post, err := h.cards.Fetch(c.Request.Context(), tweetURL)
	if err != nil {
		fail(c, "fetch", err)
		return
	}
	c.JSON(http.StatusOK, model.FetchResponse{Success: true, Data: post})
}

func (h *CardHandler) Social(c *gin.Context) {
	tweetURL, ok := bindTweetURL(c)
	if !ok {
		return
	}

	post, text, err := h.cards.SocialFromURL(c.Request.Context(), tweetURL)
	if err != nil {
		fail(c, "social", err)
		return
	}
	c.JSON(http.StatusOK, model.SocialResponse{Success: true, Post: text, TweetURL: post.TweetURL})
}

// bindTweetURL 解析请求体并校验链接，失败时已写入 400
func bindTweetURL(c *gin.Context) (string, bool) {
	var req model.TweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid or missing tweetUrl"})
		return "", false
	}
	if err := source.ValidateURL(req.TweetURL); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid or missing tweetUrl"})
		return "", false
	}
	return req.TweetURL, true
}

func fail(c *gin.Context, route string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	logger.WithFields(logrus.Fields{
		"route":      route,
		"request_id": c.GetString(requestIDKey),
	}).WithError(err).Error("request failed")
	c.JSON(status, model.ErrorResponse{Error: err.Error()})
}

// NotFound 未匹配的路由
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Not found"})
}
