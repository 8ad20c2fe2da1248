package earthengine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// functionNames collects every function invoked anywhere in the expression.
func functionNames(t *testing.T, q monitor.Query) (map[string]any, map[string]int) {
	t.Helper()

	raw, err := json.Marshal(BuildExpression(q))
	require.NoError(t, err)

	var expr map[string]any
	require.NoError(t, json.Unmarshal(raw, &expr))

	names := map[string]int{}
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			if fn, ok := node["functionName"].(string); ok {
				names[fn]++
			}
			for _, child := range node {
				walk(child)
			}
		case []any:
			for _, child := range node {
				walk(child)
			}
		}
	}
	walk(expr)
	return expr, names
}

func TestBuildExpression_Windowed(t *testing.T) {
	q := testQuery()
	expr, names := functionNames(t, q)

	assert.Equal(t, rootKey, expr["result"])
	root := expr["values"].(map[string]any)[rootKey].(map[string]any)["functionInvocationValue"].(map[string]any)
	assert.Equal(t, "Image.reduceRegion", root["functionName"])

	args := root["arguments"].(map[string]any)
	assert.Equal(t, true, args["bestEffort"].(map[string]any)["constantValue"])
	assert.Equal(t, 1e13, args["maxPixels"].(map[string]any)["constantValue"])
	assert.Equal(t, float64(monitor.DefaultScale), args["scale"].(map[string]any)["constantValue"])

	for _, fn := range []string{
		"ImageCollection.load",
		"Filter.intersects",
		"Filter.dateRangeContains",
		"reduce.mean",
		"Image.select",
		"Image.setDefaultProjection",
		"Projection.atScale",
		"Geometry.buffer",
		"Reducer.mean",
	} {
		assert.Contains(t, names, fn)
	}
	assert.NotContains(t, names, "Collection.first")
	assert.Equal(t, 2, names["Date"])
}

func TestBuildExpression_Latest(t *testing.T) {
	q := monitor.Query{
		Dataset: monitor.Temperature,
		Site:    monitor.DefaultSite,
		Latest:  true,
		From:    time.Now(),
		Scale:   monitor.DefaultScale,
	}
	_, names := functionNames(t, q)

	assert.Contains(t, names, "Collection.limit")
	assert.Contains(t, names, "Collection.first")
	assert.NotContains(t, names, "reduce.mean")
	assert.NotContains(t, names, "Filter.dateRangeContains")
}

func TestBuildExpression_PointCoordinates(t *testing.T) {
	raw, err := json.Marshal(point(monitor.DefaultSite))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"functionInvocationValue": {
			"functionName": "GeometryConstructors.Point",
			"arguments": {"coordinates": {"constantValue": [-100.3161, 25.6866]}}
		}
	}`, string(raw))
}
