package api

import "time"

// Role is the access level of an authenticated user.
type Role string

// Known roles. The backend sends lowercase values; Session normalizes to
// these uppercase forms.
const (
	RoleAdmin  Role = "ADMIN"
	RoleDriver Role = "DRIVER"
)

// User is the identity record returned by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	DriverID string `json:"driverId,omitempty"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bin is a waste collection point with live fill and gas telemetry.
// UpdatedAt is the revision marker used by the entity cache.
type Bin struct {
	ID             string    `json:"_id"`
	BinID          string    `json:"binId"`
	CurrentFill    float64   `json:"currentFill"`
	GasLevel       float64   `json:"gasLevel"`
	Status         string    `json:"status"` // CRITICAL or NORMAL
	Location       Location  `json:"location"`
	LastWasteType  string    `json:"lastWasteType,omitempty"` // dry or wet
	WasteConfident float64   `json:"wasteConfidence,omitempty"`
	IsActive       bool      `json:"isActive"`
	UpdatedAt      time.Time `json:"updatedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RouteStop is one scheduled collection point within a route.
type RouteStop struct {
	BinID    string   `json:"binId"`
	Location Location `json:"location"`
}

// Route is an ordered sequence of stops assigned to a driver, produced by
// the backend's optimizer. Geometry is display-only polyline data.
type Route struct {
	ID        string       `json:"_id"`
	Stops     []RouteStop  `json:"bins"`
	Geometry  [][2]float64 `json:"geometry,omitempty"`
	Distance  float64      `json:"distance"`
	Duration  float64      `json:"duration"`
	DriverID  string       `json:"driverId"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Driver is a fleet driver record from the users endpoints.
type Driver struct {
	ID              string    `json:"_id"`
	DriverID        string    `json:"driverId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	TruckID         string    `json:"truckId,omitempty"`
	CurrentLocation *Location `json:"currentLocation,omitempty"`
	Status          string    `json:"status"` // ACTIVE or OFFLINE
	IsActive        bool      `json:"isActive"`
}

// Credentials is the token pair minted by login and refresh.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult carries the identity and token pair from a successful login.
type LoginResult struct {
	User        User
	Credentials Credentials
}

// Prediction is the backend's fill forecast for a single bin.
type Prediction struct {
	BinID         string    `json:"binId"`
	PredictedFill float64   `json:"predictedFill"`
	FullAt        time.Time `json:"fullAt"`
}
