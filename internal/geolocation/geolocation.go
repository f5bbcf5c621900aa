package geolocation

import (
	"fmt"
	"time"

	"homescript-controller/internal/logger"

	"resty.dev/v3"
)

// Location represents geographic coordinates
type Location struct {
	Latitude  float64
	Longitude float64
	City      string
	Country   string
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// GetLocationByIP tries to determine location from the public IP address.
// Uses the free ip-api.com service (no API key required, 45 requests/minute
// limit) as a fallback for settings that leave latitude/longitude unset.
func GetLocationByIP() (*Location, error) {
	logger.Debug("Attempting to determine location from IP address...")

	client := resty.New().SetTimeout(10 * time.Second)
	defer client.Close()

	var result ipAPIResponse
	resp, err := client.R().
		SetResult(&result).
		Get("http://ip-api.com/json/?fields=status,message,country,city,lat,lon")
	if err != nil {
		return nil, fmt.Errorf("failed to get location from IP: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("location API returned status %d", resp.StatusCode())
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("location API error: %s", result.Message)
	}

	location := &Location{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		City:      result.City,
		Country:   result.Country,
	}

	logger.Info("Detected location from IP: %s, %s (%.4f, %.4f)",
		location.City, location.Country, location.Latitude, location.Longitude)

	return location, nil
}
