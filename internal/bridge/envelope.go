package bridge

import (
	"encoding/json"

	"nuha.dev/loctrack/internal/fix"
)

const CHANNEL string = "com.example.location_tracking/location"

const (
	START_LOCATION_SERVICE     string = "startLocationService"
	STOP_LOCATION_SERVICE      string = "stopLocationService"
	IS_SERVICE_RUNNING         string = "isServiceRunning"
	GRANT_LOCATION_PERMISSION  string = "grantLocationPermission"
	REVOKE_LOCATION_PERMISSION string = "revokeLocationPermission"
	ON_LOCATION_UPDATE         string = "onLocationUpdate"
)

const (
	SERVICE_START_ERROR string = "SERVICE_START_ERROR"
	SERVICE_STOP_ERROR  string = "SERVICE_STOP_ERROR"
	PERMISSION_ERROR    string = "PERMISSION_ERROR"
	INVALID_CALL        string = "INVALID_CALL"
)

// Call is an inbound method invocation.
type Call struct {
	ID        uint64          `json:"id"`
	Method    string          `json:"method" validate:"required,max=64"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply carries exactly one of Result, Error or NotImplemented. Result is
// kept raw so a false result is still encoded.
type Reply struct {
	ID             uint64          `json:"id"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *ErrorBody      `json:"error,omitempty"`
	NotImplemented bool            `json:"not_implemented,omitempty"`
}

// Invoke is an outbound method invocation, never acknowledged.
type Invoke struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments"`
}

func (r *Reply) Bool() (bool, error) {
	var v bool
	err := json.Unmarshal(r.Result, &v)
	return v, err
}

func locationUpdate(f fix.Fix) ([]byte, error) {
	return json.Marshal(Invoke{Method: ON_LOCATION_UPDATE, Arguments: f.Payload()})
}
