package vehicletracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"golang.org/x/exp/slices"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateStruct runs the struct tags and converts the first failure into a ValidationError
func validateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fieldError := validationErrors[0]

		reason := fmt.Sprintf("failed %s", fieldError.Tag())
		if fieldError.Param() != "" {
			reason = fmt.Sprintf("failed %s=%s", fieldError.Tag(), fieldError.Param())
		}

		return &ValidationError{Field: fieldError.Namespace(), Reason: reason}
	}

	return &ValidationError{Reason: err.Error()}
}

func (t *Tracker) validateLocationUpdate(update *ctdf.LocationUpdate) error {
	if update == nil {
		return newValidationError("", "location update is required")
	}

	if err := validateStruct(update); err != nil {
		return err
	}

	if !t.config.Region.Contains(update.Latitude, update.Longitude) {
		return newValidationError("LocationUpdate.Latitude", "coordinates %.5f,%.5f are outside the operating region", update.Latitude, update.Longitude)
	}

	if update.Speed != nil && *update.Speed > t.config.MaxSpeed {
		return newValidationError("LocationUpdate.Speed", "speed %.1f exceeds maximum of %.1f", *update.Speed, t.config.MaxSpeed)
	}

	return nil
}

func (t *Tracker) validateStartRequest(request *StartSessionRequest) error {
	if err := validateStruct(request); err != nil {
		return err
	}

	for i, geofence := range request.Geofences {
		if geofence.RadiusMeters < t.config.GeofenceMinRadius || geofence.RadiusMeters > t.config.GeofenceMaxRadius {
			return newValidationError(fmt.Sprintf("StartSessionRequest.Geofences[%d].RadiusMeters", i),
				"radius %.0f must be between %.0f and %.0f", geofence.RadiusMeters, t.config.GeofenceMinRadius, t.config.GeofenceMaxRadius)
		}
	}

	for i, point := range request.RoutePath {
		if !t.config.Region.Contains(point.Latitude, point.Longitude) {
			return newValidationError(fmt.Sprintf("StartSessionRequest.RoutePath[%d]", i), "route point is outside the operating region")
		}
	}

	return nil
}

func validateAlertData(data *AlertData) error {
	if err := validateStruct(data); err != nil {
		return err
	}

	if !slices.Contains(ctdf.AlertTypes, data.Type) {
		return newValidationError("AlertData.Type", "unknown alert type %q", data.Type)
	}
	if !slices.Contains(ctdf.AlertSeverities, data.Severity) {
		return newValidationError("AlertData.Severity", "unknown alert severity %q", data.Severity)
	}

	return nil
}
