// pkg/registry/schema.go
package registry

// ModelRegistry indexes trained model artifacts by model name. Paths are
// relative to the registry file.
type ModelRegistry struct {
	Version     string                    `json:"version"`
	LastUpdated string                    `json:"lastUpdated"`
	Models      map[string][]ModelVersion `json:"models"`
}

type ModelVersion struct {
	Version       string             `json:"version"`
	Path          string             `json:"path"`
	Algorithm     string             `json:"algorithm"`
	FeatureMethod string             `json:"featureMethod"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	CreatedAt     string             `json:"createdAt"`
	Tags          []string           `json:"tags,omitempty"`
}
