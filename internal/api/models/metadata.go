package models

// City identifies a city with its optional region qualifier.
type City struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// CityList is the response for GET /v1/metadata/cities.
type CityList struct {
	Cities []City `json:"cities"`
}

// PollutantList maps display labels to source codes, e.g. "PM2.5" to
// "pm2.5cnc". The codes are the values accepted by POST /v1/exports.
type PollutantList struct {
	Pollutants map[string]string `json:"pollutants"`
}
