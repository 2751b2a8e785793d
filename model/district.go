package model

import "github.com/paulmach/orb"

// District is an administrative boundary drawn beneath the markers.
type District struct {
	Name     string
	Geometry orb.Geometry
}

// CountryLabel is a static context label for a neighbouring country.
type CountryLabel struct {
	Name string
	Lon  float64
	Lat  float64
}

// NeighborCountries are drawn around the map for geographic context.
var NeighborCountries = []CountryLabel{
	{Name: "تونس", Lon: 9.5, Lat: 33.5},
	{Name: "الجزائر", Lon: 5.0, Lat: 28.0},
	{Name: "النيجر", Lon: 12.0, Lat: 20.0},
	{Name: "تشاد", Lon: 18.0, Lat: 18.0},
	{Name: "السودان", Lon: 28.0, Lat: 22.0},
	{Name: "مصر", Lon: 28.0, Lat: 31.5},
}
