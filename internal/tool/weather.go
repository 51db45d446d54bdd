package tool

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aiopshq/assistant/config"
)

// WeatherReport is the current weather for one city.
type WeatherReport struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Conditions  string  `json:"conditions"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Units       string  `json:"units"`
	Timestamp   string  `json:"timestamp"`
}

// WeatherTool fetches current weather from the OpenWeather API.
type WeatherTool struct {
	cfg  config.WeatherToolConfig
	http *HTTPClient
}

// NewWeatherTool builds the weather lookup tool.
func NewWeatherTool(cfg config.WeatherToolConfig) *WeatherTool {
	return &WeatherTool{cfg: cfg, http: NewHTTPClient(cfg.Timeout)}
}

func (w *WeatherTool) Name() string { return "weather" }

func (w *WeatherTool) Description() string {
	return "Fetch current weather conditions for a city"
}

func (w *WeatherTool) RequiredParams() []string { return []string{"city"} }

// Invoke fetches current weather. Parameters: city (required), units
// (metric|imperial|standard, default from config).
func (w *WeatherTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	city, err := stringParam(w.Name(), params, "city")
	if err != nil {
		return nil, err
	}
	units := stringParamOr(params, "units", w.cfg.Units)
	switch units {
	case "metric", "imperial", "standard":
	case "":
		units = "metric"
	default:
		units = "metric"
	}

	endpoint := w.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openweathermap.org/data/2.5"
	}
	reqURL := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=%s",
		endpoint, url.QueryEscape(city), url.QueryEscape(w.cfg.APIKey), units)

	var resp struct {
		Name string `json:"name"`
		Sys  struct {
			Country string `json:"country"`
		} `json:"sys"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Dt int64 `json:"dt"`
	}
	if err := w.http.GetJSON(ctx, w.Name(), reqURL, nil, &resp); err != nil {
		return nil, err
	}

	conditions := ""
	if len(resp.Weather) > 0 {
		conditions = resp.Weather[0].Description
	}
	report := WeatherReport{
		City:        resp.Name,
		Country:     resp.Sys.Country,
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Conditions:  conditions,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Units:       units,
		Timestamp:   time.Unix(resp.Dt, 0).UTC().Format(time.RFC3339),
	}
	if report.City == "" {
		report.City = city
	}
	return report, nil
}
