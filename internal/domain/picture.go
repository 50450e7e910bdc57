package domain

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Picture is one Astronomy Picture of the Day entry as published by the provider.
type Picture struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	URL         string    `json:"url"`
	HDURL       string    `json:"hdurl,omitempty"`
	MediaType   MediaType `json:"media_type"`
	Explanation string    `json:"explanation"`
	Copyright   string    `json:"copyright,omitempty"`
}

// BestURL prefers the high resolution variant when the provider has one.
func (p Picture) BestURL() string {
	if p.HDURL != "" {
		return p.HDURL
	}
	return p.URL
}
