package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type CardMetadata struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	Text        string `json:"text"`
	TweetURL    string `json:"tweetUrl"`
	Likes       string `json:"likes"`
	Retweets    string `json:"retweets"`
}

type GenerateResponse struct {
	Success  bool         `json:"success"`
	Image    string       `json:"image"` // base64 PNG
	Metadata CardMetadata `json:"metadata"`
}

type FetchResponse struct {
	Success bool      `json:"success"`
	Data    *PostData `json:"data"`
}

type SocialResponse struct {
	Success  bool   `json:"success"`
	Post     string `json:"post"`
	TweetURL string `json:"tweetUrl"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
