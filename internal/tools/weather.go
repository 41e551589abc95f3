package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// DefaultWeatherUserAgent identifies us to api.weather.gov, which rejects
// anonymous clients.
const DefaultWeatherUserAgent = "agentdesk-weather/1.0"

// maxForecastPeriods is how many forecast periods are reported.
const maxForecastPeriods = 5

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string `json:"name"`
			Temperature      int    `json:"temperature"`
			TemperatureUnit  string `json:"temperatureUnit"`
			WindSpeed        string `json:"windSpeed"`
			WindDirection    string `json:"windDirection"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			Event       string `json:"event"`
			AreaDesc    string `json:"areaDesc"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
		} `json:"properties"`
	} `json:"features"`
}

// Weather queries the US National Weather Service.
type Weather struct {
	client    *retryablehttp.Client
	base      string
	userAgent string
	log       *logging.Logger
}

// NewWeather creates the weather tools.
func NewWeather(client *retryablehttp.Client, base, userAgent string, log *logging.Logger) *Weather {
	if base == "" {
		base = DefaultEndpoints.Weather
	}
	if userAgent == "" {
		userAgent = DefaultWeatherUserAgent
	}
	return &Weather{client: client, base: strings.TrimRight(base, "/"), userAgent: userAgent, log: log.Sub("tools.weather")}
}

func (w *Weather) get(ctx context.Context, u string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/geo+json")
	body, err := do(w.client, req)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Forecast returns the next forecast periods for a location.
func (w *Weather) Forecast(ctx context.Context, lat, lon float64) (string, error) {
	w.log.Debug().Float64("lat", lat).Float64("lon", lon).Msg("getting forecast")

	var points pointsResponse
	if err := w.get(ctx, fmt.Sprintf("%s/points/%.4f,%.4f", w.base, lat, lon), &points); err != nil {
		return "", fmt.Errorf("failed to get grid point information: %w", err)
	}
	if points.Properties.Forecast == "" {
		return "Unable to fetch forecast data for this location.", nil
	}

	var fc forecastResponse
	if err := w.get(ctx, points.Properties.Forecast, &fc); err != nil {
		return "", fmt.Errorf("failed to get forecast: %w", err)
	}

	periods := fc.Properties.Periods
	if len(periods) > maxForecastPeriods {
		periods = periods[:maxForecastPeriods]
	}
	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, fmt.Sprintf("%s:\nTemperature: %d°%s\nWind: %s %s\nForecast: %s\n",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindSpeed, p.WindDirection, p.DetailedForecast))
	}
	return strings.Join(parts, "\n---\n"), nil
}

// Alerts returns the active alerts for a two-letter US state code.
func (w *Weather) Alerts(ctx context.Context, state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	var resp alertsResponse
	if err := w.get(ctx, w.base+"/alerts/active?area="+url.QueryEscape(state), &resp); err != nil {
		return "", fmt.Errorf("failed to get alerts: %w", err)
	}
	if len(resp.Features) == 0 {
		return "No active alerts for this state.", nil
	}
	parts := make([]string, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		instruction := p.Instruction
		if instruction == "" {
			instruction = "No specific instructions provided"
		}
		parts = append(parts, fmt.Sprintf("Event: %s\nArea: %s\nSeverity: %s\nDescription: %s\nInstructions: %s\n",
			p.Event, p.AreaDesc, p.Severity, p.Description, instruction))
	}
	return strings.Join(parts, "\n---\n"), nil
}

// Tools returns get_forecast and get_alerts.
func (w *Weather) Tools() []agent.Tool {
	return []agent.Tool{
		agent.NewFuncTool("get_forecast",
			"Get the weather forecast for a location in the United States.",
			`{"type":"object","properties":{"latitude":{"type":"number","description":"Latitude of the location"},"longitude":{"type":"number","description":"Longitude of the location"}},"required":["latitude","longitude"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct {
					Latitude  *float64
					Longitude *float64
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.Latitude == nil || args.Longitude == nil {
					return "", errRequired("latitude", "longitude")
				}
				return w.Forecast(ctx, *args.Latitude, *args.Longitude)
			}),
		agent.NewFuncTool("get_alerts",
			"Get active weather alerts for a US state.",
			`{"type":"object","properties":{"state":{"type":"string","description":"Two-letter US state code (e.g. CA, NY)"}},"required":["state"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct{ State string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.State == "" {
					return "", errRequired("state")
				}
				return w.Alerts(ctx, args.State)
			}),
	}
}
