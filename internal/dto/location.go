package dto

import (
	"context"
	"fmt"

	"github.com/noah-isme/sns-grievance-api/internal/models"
)

// Device failure codes mirroring the browser geolocation API.
const (
	DeviceErrorPermissionDenied    = "PERMISSION_DENIED"
	DeviceErrorTimeout             = "TIMEOUT"
	DeviceErrorPositionUnavailable = "POSITION_UNAVAILABLE"
)

// ReverseLocationRequest resolves a map click.
type ReverseLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

// SelectSuggestionRequest picks one of the offered suggestions.
type SelectSuggestionRequest struct {
	DisplayName string   `json:"displayName" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" validate:"required"`
	PlaceID     string   `json:"placeId"`
}

// ToSuggestion converts the payload.
func (r SelectSuggestionRequest) ToSuggestion() models.LocationSuggestion {
	s := models.LocationSuggestion{DisplayName: r.DisplayName, PlaceID: r.PlaceID}
	if r.Latitude != nil {
		s.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		s.Longitude = *r.Longitude
	}
	return s
}

// DeviceFixRequest carries the outcome of a single device positioning attempt: either a
// fix or one of the failure codes.
type DeviceFixRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Error     string   `json:"error" validate:"omitempty,oneof=PERMISSION_DENIED TIMEOUT POSITION_UNAVAILABLE"`
}

// Locate reports the fix carried by the request.
func (r DeviceFixRequest) Locate(_ context.Context) (models.DeviceFix, error) {
	if r.Error != "" {
		return models.DeviceFix{}, fmt.Errorf("device reported %s", r.Error)
	}
	if r.Latitude == nil || r.Longitude == nil {
		return models.DeviceFix{}, fmt.Errorf("device fix missing coordinates")
	}
	fix := models.DeviceFix{Latitude: *r.Latitude, Longitude: *r.Longitude}
	if r.Accuracy != nil {
		fix.Accuracy = *r.Accuracy
	}
	return fix, nil
}
