package entity

// ChannelProfile is the public view of a user seen as a channel, together with
// its subscription counters relative to the viewer.
type ChannelProfile struct {
	ID                        string `json:"id"`
	Fullname                  string `json:"fullname"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}
