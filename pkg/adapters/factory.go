package adapters

import (
	"encoding/json"
	"fmt"
)

// New creates an adapter from its kind and a flat config map.
//
// Supported kinds:
//   - "prometheus": url (default http://localhost:9090)
//   - "victoriametrics": url (default http://localhost:8428)
//   - "http": url, valuePath, timestampPath, and optionally method, body,
//     timestampFormat, headers (JSON object), templateVars (JSON object)
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "prometheus":
		return &PrometheusAdapter{ServerURL: withDefault(config["url"], "http://localhost:9090")}, nil
	case "victoriametrics":
		return &VictoriaMetricsAdapter{ServerURL: withDefault(config["url"], "http://localhost:8428")}, nil
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be prometheus, victoriametrics, or http)", kind)
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func newHTTP(config map[string]string) (Adapter, error) {
	a := &HTTPAdapter{
		URL:             config["url"],
		Method:          withDefault(config["method"], "GET"),
		Body:            config["body"],
		ValuePath:       config["valuePath"],
		TimestampPath:   config["timestampPath"],
		TimestampFormat: withDefault(config["timestampFormat"], "rfc3339"),
	}
	if a.URL == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}
	if a.ValuePath == "" || a.TimestampPath == "" {
		return nil, fmt.Errorf("http adapter requires 'valuePath' and 'timestampPath' config")
	}

	if raw := config["headers"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.Headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}
	if raw := config["templateVars"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.TemplateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	return a, nil
}
