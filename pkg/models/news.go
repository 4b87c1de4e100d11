package models

type Entities struct {
	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Locations     []string `json:"locations,omitempty"`
}

func (e *Entities) Empty() bool {
	return e == nil || len(e.Persons)+len(e.Organizations)+len(e.Locations) == 0
}

type NewsArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Author      string    `json:"author,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt string    `json:"published_at"`
	CrawledAt   string    `json:"crawled_at"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Sentiment   string    `json:"sentiment,omitempty"`
	Entities    *Entities `json:"entities,omitempty"`
}

// DailyStats is one day of crawl counts. Count is the total crawled.
type DailyStats struct {
	Date         string `json:"date"`
	Count        int    `json:"total_crawled"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failed_count"`
}

type Category struct {
	ID    int    `json:"id,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"article_count"`
}

type Stats struct {
	TotalArticles     int64        `json:"total_articles"`
	TotalCrawledToday int          `json:"total_crawled_today"`
	SuccessRate       float64      `json:"success_rate"`
	RecentStats       []DailyStats `json:"recent_stats"`
}

// ArticlePage is one page of a news listing or search.
type ArticlePage struct {
	Articles   []NewsArticle `json:"articles"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

type CategoryList struct {
	Categories []Category `json:"categories"`
	Total      int        `json:"total"`
}

type DailyStatsList struct {
	Stats     []DailyStats `json:"stats"`
	TotalDays int          `json:"total_days"`
}
