package schema

// StatusRate is the share of records in one status, as a percentage.
type StatusRate struct {
	Status Status  `json:"status" yaml:"status"`
	Rate   float64 `json:"rate" yaml:"rate"`
}

// FrequencyBucket counts activity inside one time bucket.
type FrequencyBucket struct {
	Interval      string `json:"interval" yaml:"interval"`
	CreationCount int    `json:"creationCount" yaml:"creationCount"`
	UpdateCount   int    `json:"updateCount" yaml:"updateCount"`
	TotalCount    int    `json:"totalCount" yaml:"totalCount"`
}

// PeakHour is the activity inside one (date, hour) slot.
type PeakHour struct {
	Date         string `json:"date" yaml:"date"`
	Hour         int    `json:"hour" yaml:"hour"`
	RequestCount int    `json:"requestCount" yaml:"requestCount"`
	Time         string `json:"time" yaml:"time"`
}

// Summary is the combined reporting response.
type Summary struct {
	TotalCount       int               `json:"totalCount" yaml:"totalCount"`
	SuccessRate      float64           `json:"successRate" yaml:"successRate"`
	CancellationRate float64           `json:"cancellationRate" yaml:"cancellationRate"`
	StatusRates      []StatusRate      `json:"statusRates" yaml:"statusRates"`
	FrequencyData    []FrequencyBucket `json:"frequencyData" yaml:"frequencyData"`
	TopPeakHours     []PeakHour        `json:"topPeakHours" yaml:"topPeakHours"`
}
