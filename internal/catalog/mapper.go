package catalog

import (
	"time"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// Page is one page of catalog results with the total result count.
type Page struct {
	Shows []domain.Show
	Total int
}

func buildQueryRequest(q Query) queryRequest {
	req := queryRequest{
		SortBy:      "timestamp",
		SortOrder:   "desc",
		Offset:      q.Offset,
		Size:        q.Size,
		MinDuration: int64(q.MinDuration.Seconds()),
		MaxDuration: int64(q.MaxDuration.Seconds()),
	}
	if req.Size <= 0 {
		req.Size = 25
	}
	if q.Text != "" {
		req.Queries = append(req.Queries, fieldQuery{
			Fields: []string{"title", "topic"},
			Query:  q.Text,
		})
	}
	if q.Topic != "" {
		req.Queries = append(req.Queries, fieldQuery{
			Fields: []string{"topic"},
			Query:  q.Topic,
		})
	}
	for _, channel := range q.Channels {
		req.Queries = append(req.Queries, fieldQuery{
			Fields: []string{"channel"},
			Query:  channel,
		})
	}
	return req
}

func mapPage(qr *queryResponse) *Page {
	shows := make([]domain.Show, 0, len(qr.Result.Results))
	for _, dto := range qr.Result.Results {
		shows = append(shows, mapShow(dto))
	}
	return &Page{Shows: shows, Total: qr.Result.QueryInfo.TotalResults}
}

func mapShow(dto showDTO) domain.Show {
	urls := make(map[domain.Quality]string)
	if dto.URLVideoLow != "" {
		urls[domain.QualityLow] = dto.URLVideoLow
	}
	if dto.URLVideo != "" {
		urls[domain.QualityMedium] = dto.URLVideo
	}
	if dto.URLVideoHD != "" {
		urls[domain.QualityHigh] = dto.URLVideoHD
	}

	catalogID := dto.ID
	if catalogID == "" {
		// Older catalog revisions omit the ID; the video URL is stable enough
		// to key on.
		catalogID = dto.URLVideo
	}

	return domain.Show{
		CatalogID:    catalogID,
		Title:        dto.Title,
		Topic:        dto.Topic,
		Channel:      dto.Channel,
		Description:  dto.Description,
		Duration:     time.Duration(dto.Duration) * time.Second,
		AiredAt:      time.Unix(dto.Timestamp, 0),
		SizeHint:     dto.Size,
		StreamURLs:   urls,
		ThumbnailURL: dto.URLThumbnail,
	}
}
