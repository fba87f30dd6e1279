package blocklist

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadSources reads the refresh source map (agent name -> upstream URL)
// from a JSON file keyed by the provider. A missing file yields an empty
// map: the service still serves its cached dataset, refresh just has
// nothing to do.
func LoadSources(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file map[string]map[string]string
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	sources, ok := file[ProviderKey]
	if !ok || sources == nil {
		return map[string]string{}, nil
	}
	return sources, nil
}
