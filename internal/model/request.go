package model

type TweetRequest struct {
	TweetURL string `json:"tweetUrl"`
}
