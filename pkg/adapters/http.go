package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/trendlens/pkg/series"
)

// HTTPAdapter calls an arbitrary REST endpoint and extracts a series with
// gjson paths.
//
// URL, Body and Headers are Go templates rendered with:
//
//	{{.Query}}        - the query expression (URL-escaped inside URL)
//	{{.Start}}        - start as Unix seconds
//	{{.End}}          - end as Unix seconds
//	{{.Step}}         - step in seconds
//	{{.StartRFC3339}} - start as RFC3339
//	{{.EndRFC3339}}   - end as RFC3339
//
// plus any entries of TemplateVars.
//
// Example:
//
//	adapter := &HTTPAdapter{
//	    URL:           "https://bms.example.com/api/points/{{.Query}}/history?from={{.Start}}&to={{.End}}",
//	    Headers:       map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    ValuePath:     "data.#.value",
//	    TimestampPath: "data.#.ts",
//	    TimestampFormat: "unix",
//	}
type HTTPAdapter struct {
	URL string

	// Method defaults to GET.
	Method string

	Headers map[string]string

	Body string

	// ValuePath is the gjson path to the values, e.g. "data.#.value".
	ValuePath string

	// TimestampPath must yield as many elements as ValuePath.
	TimestampPath string

	// TimestampFormat is one of "rfc3339" (default), "unix", "unix_milli".
	TimestampFormat string

	HTTPClient *http.Client

	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter. Points outside [q.Start, q.End) are dropped.
func (h *HTTPAdapter) Collect(ctx context.Context, q Query) (*series.TimestampSeries, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	data := map[string]any{
		"Query":        q.Expr,
		"Start":        q.Start.Unix(),
		"End":          q.End.Unix(),
		"Step":         q.step(),
		"StartRFC3339": q.Start.UTC().Format(time.RFC3339),
		"EndRFC3339":   q.End.UTC().Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		data[k] = v
	}

	urlData := make(map[string]any, len(data))
	for k, v := range data {
		urlData[k] = v
	}
	urlData["Query"] = url.PathEscape(q.Expr)
	target, err := renderTemplate(h.URL, urlData)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		rendered, err := renderTemplate(h.Body, data)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	values := gjson.GetBytes(respBody, h.ValuePath)
	timestamps := gjson.GetBytes(respBody, h.TimestampPath)
	if !values.Exists() {
		return nil, fmt.Errorf("value path %q not found in response", h.ValuePath)
	}
	if !timestamps.Exists() {
		return nil, fmt.Errorf("timestamp path %q not found in response", h.TimestampPath)
	}

	valArray := values.Array()
	tsArray := timestamps.Array()
	if len(valArray) != len(tsArray) {
		return nil, fmt.Errorf("value count (%d) != timestamp count (%d)", len(valArray), len(tsArray))
	}

	type point struct {
		ts  time.Time
		val float64
	}
	points := make([]point, 0, len(valArray))
	for i := range valArray {
		ts, err := h.parseTimestamp(tsArray[i])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}
		if ts.Before(q.Start) || !ts.Before(q.End) {
			continue
		}
		points = append(points, point{ts: ts.UTC(), val: valArray[i].Float()})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })

	out := series.Empty(q.Expr)
	for _, p := range points {
		out.Append(p.ts, p.val)
	}
	return out, nil
}

func (h *HTTPAdapter) parseTimestamp(value gjson.Result) (time.Time, error) {
	switch h.TimestampFormat {
	case "", "rfc3339":
		return time.Parse(time.RFC3339, value.String())
	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", h.TimestampFormat)
	}
}

func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}
	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateConfig checks if the adapter configuration is valid.
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.ValuePath == "" {
		return errors.New("valuePath is required")
	}
	if h.TimestampPath == "" {
		return errors.New("timestampPath is required")
	}
	switch h.TimestampFormat {
	case "", "rfc3339", "unix", "unix_milli":
		return nil
	}
	return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, unix, or unix_milli)", h.TimestampFormat)
}
