package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hephaex/Barami/pkg/models"
)

// NewsClient talks to the news API.
type NewsClient struct {
	baseClient
}

func NewNewsClient(baseURL string, timeout time.Duration) *NewsClient {
	return &NewsClient{baseClient: newBaseClient(baseURL, timeout)}
}

func (c *NewsClient) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *NewsClient) DailyStats(ctx context.Context, days int) ([]models.DailyStats, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}

	var resp models.DailyStatsList
	if err := c.do(ctx, http.MethodGet, "/stats/daily", q, &resp); err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

func (c *NewsClient) Categories(ctx context.Context) ([]models.Category, error) {
	var resp models.CategoryList
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// News lists articles. Search maps to q and Size to limit on the wire.
func (c *NewsClient) News(ctx context.Context, filters models.NewsFilters) (*models.ArticlePage, error) {
	filters = filters.Normalize()

	q := url.Values{}
	if filters.Search != "" {
		q.Set("q", filters.Search)
	}
	if filters.Category != "" {
		q.Set("category", filters.Category)
	}
	if filters.StartDate != "" {
		q.Set("start_date", filters.StartDate)
	}
	if filters.EndDate != "" {
		q.Set("end_date", filters.EndDate)
	}
	q.Set("page", strconv.Itoa(filters.Page))
	q.Set("limit", strconv.Itoa(filters.Size))

	var page models.ArticlePage
	if err := c.do(ctx, http.MethodGet, "/news", q, &page); err != nil {
		return nil, err
	}
	if page.TotalPages == 0 && page.Limit > 0 {
		page.TotalPages = (page.Total + page.Limit - 1) / page.Limit
	}
	return &page, nil
}

func (c *NewsClient) RecentNews(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	page, err := c.News(ctx, models.NewsFilters{Page: 1, Size: limit})
	if err != nil {
		return nil, err
	}
	return page.Articles, nil
}

var ErrEmptyID = errors.New("article id is empty")

func (c *NewsClient) Article(ctx context.Context, id string) (*models.NewsArticle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}

	var article models.NewsArticle
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/news/%s", url.PathEscape(id)), nil, &article); err != nil {
		return nil, err
	}
	return &article, nil
}
