package weather

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/config"
)

const ToolName = "weather"

// Unavailable is returned to the model whenever the provider cannot answer.
const Unavailable = "weather is not available right now"

var ErrUnknownDistrict = errors.New("unknown district")

// Districts maps district names to provider codes. The first code seen for a
// name wins.
type Districts map[string]string

// LoadDistricts reads a CSV with district and district_geocode columns.
func LoadDistricts(r io.Reader) (Districts, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameCol, codeCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "district":
			nameCol = i
		case "district_geocode":
			codeCol = i
		}
	}
	if nameCol < 0 || codeCol < 0 {
		return nil, fmt.Errorf("district csv needs district and district_geocode columns")
	}

	out := make(Districts)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if nameCol >= len(rec) || codeCol >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		if _, ok := out[name]; !ok && name != "" {
			out[name] = strings.TrimSpace(rec[codeCol])
		}
	}
	return out, nil
}

func LoadDistrictFile(path string) (Districts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDistricts(f)
}

func (d Districts) Lookup(name string) (string, error) {
	code, ok := d[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDistrict, name)
	}
	return code, nil
}

type Tool struct {
	endpoint  string
	accessKey string
	districts Districts
	client    *http.Client
	logger    *zap.Logger
}

type Option func(*Tool)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) {
		if c != nil {
			t.client = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.logger = l
		}
	}
}

func New(cfg config.WeatherConfig, districts Districts, opts ...Option) *Tool {
	t := &Tool{
		endpoint:  cfg.Endpoint,
		accessKey: cfg.AccessKey,
		districts: districts,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("weather")
	return t
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string {
	return "Reports the current weather for a district or city name."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"location": {"type": "string", "minLength": 1, "description": "district or city name"}},
		"required": ["location"]
	}`)
}

type response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  struct {
		Now struct {
			Text      string  `json:"text"`
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			RH        float64 `json:"rh"`
			WindDir   string  `json:"wind_dir"`
			WindClass string  `json:"wind_class"`
		} `json:"now"`
	} `json:"result"`
}

func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	code, err := t.districts.Lookup(in.Location)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("district_id", code)
	q.Set("data_type", "all")
	q.Set("ak", t.accessKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("weather request failed", zap.String("location", in.Location), zap.Error(err))
		return Unavailable, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		t.logger.Warn("weather request failed", zap.String("location", in.Location), zap.Int("status", resp.StatusCode))
		return Unavailable, nil
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode weather response: %w", err)
	}
	if body.Status != 0 {
		t.logger.Warn("weather provider error", zap.Int("status", body.Status), zap.String("message", body.Message))
		return Unavailable, nil
	}
	now := body.Result.Now
	return fmt.Sprintf("current weather in %s: %s, temperature %g°C, feels like %g°C, relative humidity %g%%, wind %s %s.",
		in.Location, now.Text, now.Temp, now.FeelsLike, now.RH, now.WindDir, now.WindClass), nil
}
