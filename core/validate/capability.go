package validate

// Capability expresses the hard business caps a vehicle type carries on top
// of its generic capacity field. Types without an entry fall back to the
// compatible-with check and the numeric capacity.
type Capability struct {
	// MaxPassengers is a hard cap on the job's passenger count. Zero means
	// the type's generic capacity applies.
	MaxPassengers int `json:"max_passengers"`
	// ExcludedTypes lists requested vehicle-type identifiers whose jobs the
	// type must never carry.
	ExcludedTypes []string `json:"excluded_types"`
}

// Excludes reports whether jobs requesting typeID are categorically barred.
func (c Capability) Excludes(typeID string) bool {
	for _, id := range c.ExcludedTypes {
		if id == typeID {
			return true
		}
	}
	return false
}

// Config holds the capability table, keyed by vehicle-type identifier. The
// table is loaded from configuration so new types need no code change.
type Config struct {
	Capabilities map[string]Capability `json:"capabilities"`
}

// largeTypes are the categories whose jobs the standard saloon and MPV
// classes must never carry.
var largeTypes = []string{"minibus", "coach"}

// SetDefaults installs the stock fleet rules when no table is configured:
// saloons cap at 3 passengers, MPVs at 8, and neither carries jobs tagged
// for the large categories.
func (c *Config) SetDefaults() {
	if len(c.Capabilities) > 0 {
		return
	}
	c.Capabilities = map[string]Capability{
		"saloon": {MaxPassengers: 3, ExcludedTypes: largeTypes},
		"mpv":    {MaxPassengers: 8, ExcludedTypes: largeTypes},
	}
}
