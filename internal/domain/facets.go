package domain

// Region identifies a country/state pair in the facet index. State is ""
// for cities whose trial record carries no state.
type Region struct {
	Country string
	State   string
}

// LocationFacets is the aggregated location vocabulary of the whole index,
// lower-cased and sorted, for populating search UI dropdowns.
type LocationFacets struct {
	Countries       []string
	StatesByCountry map[string][]string
	CitiesByRegion  map[Region][]string
}
