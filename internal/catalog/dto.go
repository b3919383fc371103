package catalog

// queryRequest is the wire shape of a catalog query.
type queryRequest struct {
	Queries     []fieldQuery `json:"queries"`
	SortBy      string       `json:"sortBy"`
	SortOrder   string       `json:"sortOrder"`
	Offset      int          `json:"offset"`
	Size        int          `json:"size"`
	MinDuration int64        `json:"duration_min,omitempty"` // seconds
	MaxDuration int64        `json:"duration_max,omitempty"` // seconds
}

type fieldQuery struct {
	Fields []string `json:"fields"`
	Query  string   `json:"query"`
}

// queryResponse is the wire shape of a catalog query result.
type queryResponse struct {
	Result struct {
		Results   []showDTO `json:"results"`
		QueryInfo struct {
			TotalResults int `json:"totalResults"`
		} `json:"queryInfo"`
	} `json:"result"`
	Err string `json:"err,omitempty"`
}

type showDTO struct {
	ID           string `json:"id"`
	Channel      string `json:"channel"`
	Topic        string `json:"topic"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Timestamp    int64  `json:"timestamp"` // unix seconds
	Duration     int64  `json:"duration"`  // seconds
	Size         int64  `json:"size"`      // bytes, 0 when unknown
	URLVideo     string `json:"url_video"`
	URLVideoLow  string `json:"url_video_low"`
	URLVideoHD   string `json:"url_video_hd"`
	URLThumbnail string `json:"url_thumbnail"`
}
