package model

// Image 媒体图片
type Image struct {
	Src string `json:"src"`
}

// PostData 是从内容 API 归一化后的推文数据，创建后不再修改
type PostData struct {
	Text        string    `json:"text"`
	DisplayName string    `json:"displayName"`
	Handle      string    `json:"handle"`
	AvatarURL   string    `json:"avatarUrl"`
	TweetURL    string    `json:"tweetUrl"`
	CreatedAt   string    `json:"createdAt"`
	TimeText    string    `json:"timeText"`
	Likes       string    `json:"likes"`
	Retweets    string    `json:"retweets"`
	Replies     string    `json:"replies"`
	Views       string    `json:"views"`
	Images      []Image   `json:"images"`
	QuoteTweet  *PostData `json:"quoteTweet"` // 只保留一层
}

// HasStats 是否有任意非空的互动数
func (p *PostData) HasStats() bool {
	return p.Replies != "" || p.Retweets != "" || p.Likes != "" || p.Views != ""
}
