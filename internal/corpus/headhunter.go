package corpus

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	HeadHunterAPIURL = "https://api.hh.ru"
	SearchPath       = "/vacancies"
	userAgent        = "job-recommender (corpus loader)"
	// Max value for search per page.
	perPage = 100
)

// SearchParams are the HeadHunter vacancy search parameters.
type SearchParams struct {
	Text        string   `mapstructure:"text"`
	Areas       []string `mapstructure:"areas"`
	Schedules   []string `mapstructure:"schedules"`
	Experience  string   `mapstructure:"experience"`
	SearchField string   `mapstructure:"search-field"`
	OrderBy     string   `mapstructure:"order-by"`
	Period      int      `mapstructure:"period"`
	// MaxPages caps the number of fetched pages. 0 means all pages.
	MaxPages int `mapstructure:"max-pages"`
}

// HeadHunter loads postings from the HeadHunter vacancies API.
type HeadHunter struct {
	client *resty.Client
	logger *zap.Logger
	params SearchParams
	// FetchDetails requests every vacancy individually to get the full description.
	FetchDetails bool
}

// NewHeadHunter builds the source. token may be empty for anonymous search.
func NewHeadHunter(logger *zap.Logger, apiURL, token string, params SearchParams) *HeadHunter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiURL == "" {
		apiURL = HeadHunterAPIURL
	}

	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &HeadHunter{
		client: client,
		logger: logger,
		params: params,
	}
}

func (s *HeadHunter) Name() string { return "headhunter" }

func (s *HeadHunter) Load(ctx context.Context) ([]Record, error) {
	items, err := s.items(ctx, s.query())
	if err != nil {
		return nil, err
	}

	var vacancies []*Vacancy
	cfg := &mapstructure.DecoderConfig{
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode vacancies: %w", err)
	}

	records := make([]Record, 0, len(vacancies))
	for _, v := range vacancies {
		if v == nil || v.Archived {
			continue
		}
		if s.FetchDetails {
			full, err := s.vacancy(ctx, v.ID)
			if err != nil {
				s.logger.Debug("fetching detailed vacancy failed",
					zap.String("vacancy_id", v.ID),
					zap.Error(err),
				)
			} else {
				v = full
			}
		}
		records = append(records, v.Record())
	}

	return records, nil
}

// items returns raw items from all result pages.
func (s *HeadHunter) items(ctx context.Context, q url.Values) ([]interface{}, error) {
	var items []interface{}

	for page := 0; ; page++ {
		q.Set("page", strconv.Itoa(page))

		body, err := s.get(ctx, SearchPath, q)
		if err != nil {
			return nil, err
		}

		pages := int(gjson.GetBytes(body, "pages").Int())
		found, ok := gjson.GetBytes(body, "items").Value().([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected search response: no items")
		}
		items = append(items, found...)

		s.logger.Debug("got response from HH.ru",
			zap.Int("page", page),
			zap.Int("pages", pages),
			zap.Int("items", len(found)),
		)

		if page >= pages-1 {
			break
		}
		if s.params.MaxPages > 0 && page+1 >= s.params.MaxPages {
			s.logger.Debug("page limit reached", zap.Int("max_pages", s.params.MaxPages))
			break
		}
	}

	return items, nil
}

func (s *HeadHunter) vacancy(ctx context.Context, id string) (*Vacancy, error) {
	var v Vacancy

	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&v).
		Get(SearchPath + "/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bad status: %s", resp.Status())
	}

	return &v, nil
}

func (s *HeadHunter) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bad status: %s", resp.Status())
	}

	return resp.Body(), nil
}

func (s *HeadHunter) query() url.Values {
	p := s.params
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))

	if p.Text != "" {
		q.Set("text", p.Text)
	}
	for _, area := range p.Areas {
		q.Add("area", area)
	}
	for _, schedule := range p.Schedules {
		q.Add("schedule", schedule)
	}
	if p.Experience != "" {
		q.Set("experience", p.Experience)
	}
	if p.SearchField != "" {
		q.Set("search_field", p.SearchField)
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}
	if p.Period > 0 {
		q.Set("period", strconv.Itoa(p.Period))
	}

	return q
}
