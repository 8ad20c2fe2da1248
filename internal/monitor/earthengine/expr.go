package earthengine

import (
	"time"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// Expression graph helpers. Earth Engine evaluates a tree of function
// invocations; we build it inline with a single root value.

const (
	rootKey = "0"

	timeStartProperty = "system:time_start"
	defaultCRS        = "EPSG:4326"

	// maxPixels caps the pixels examined by one reduction.
	maxPixels = 1e13
)

func constant(v any) ValueNode {
	return ValueNode{ConstantValue: v}
}

func invoke(name string, args map[string]ValueNode) ValueNode {
	if args == nil {
		args = map[string]ValueNode{}
	}
	return ValueNode{
		FunctionInvocationValue: &FunctionInvocation{
			FunctionName: name,
			Arguments:    args,
		},
	}
}

func point(site monitor.Site) ValueNode {
	return invoke("GeometryConstructors.Point", map[string]ValueNode{
		"coordinates": constant([]float64{site.Lon, site.Lat}),
	})
}

func region(site monitor.Site) ValueNode {
	return invoke("Geometry.buffer", map[string]ValueNode{
		"geometry": point(site),
		"distance": constant(site.BufferM),
	})
}

func date(t time.Time) ValueNode {
	return invoke("Date", map[string]ValueNode{
		"value": constant(t.UnixMilli()),
	})
}

func loadCollection(id string) ValueNode {
	return invoke("ImageCollection.load", map[string]ValueNode{
		"id": constant(id),
	})
}

func filterBounds(collection, geometry ValueNode) ValueNode {
	return invoke("Collection.filter", map[string]ValueNode{
		"collection": collection,
		"filter": invoke("Filter.intersects", map[string]ValueNode{
			"leftField":  constant(".all"),
			"rightValue": geometry,
		}),
	})
}

func filterDate(collection ValueNode, from, to time.Time) ValueNode {
	return invoke("Collection.filter", map[string]ValueNode{
		"collection": collection,
		"filter": invoke("Filter.dateRangeContains", map[string]ValueNode{
			"leftValue": invoke("DateRange", map[string]ValueNode{
				"start": date(from),
				"end":   date(to),
			}),
			"rightField": constant(timeStartProperty),
		}),
	})
}

func latestImage(collection ValueNode) ValueNode {
	sorted := invoke("Collection.limit", map[string]ValueNode{
		"collection": collection,
		"key":        constant(timeStartProperty),
		"ascending":  constant(false),
	})
	return invoke("Collection.first", map[string]ValueNode{
		"collection": sorted,
	})
}

func temporalMean(collection ValueNode) ValueNode {
	return invoke("reduce.mean", map[string]ValueNode{
		"collection": collection,
	})
}

func selectBand(image ValueNode, band string) ValueNode {
	return invoke("Image.select", map[string]ValueNode{
		"input":         image,
		"bandSelectors": constant([]string{band}),
	})
}

// withDefaultProjection forces a CRS and nominal scale onto image; mean
// composites of mixed-resolution sources otherwise have no native scale.
func withDefaultProjection(image ValueNode, scale float64) ValueNode {
	proj := invoke("Projection.atScale", map[string]ValueNode{
		"projection": invoke("Projection", map[string]ValueNode{
			"crs": constant(defaultCRS),
		}),
		"meters": constant(scale),
	})
	return invoke("Image.setDefaultProjection", map[string]ValueNode{
		"image": image,
		"crs":   proj,
	})
}

func reduceRegionMean(image, geometry ValueNode, scale float64) ValueNode {
	return invoke("Image.reduceRegion", map[string]ValueNode{
		"image":      image,
		"reducer":    invoke("Reducer.mean", nil),
		"geometry":   geometry,
		"scale":      constant(scale),
		"bestEffort": constant(true),
		"maxPixels":  constant(maxPixels),
	})
}

// BuildExpression turns q into the expression evaluated by value:compute.
func BuildExpression(q monitor.Query) *Expression {
	collection := filterBounds(loadCollection(q.Dataset.Collection), region(q.Site))

	var image ValueNode
	if q.Latest {
		image = latestImage(collection)
	} else {
		image = temporalMean(filterDate(collection, q.From, q.To))
	}
	image = selectBand(image, q.Dataset.Band)

	return &Expression{
		Result: rootKey,
		Values: map[string]ValueNode{
			rootKey: reduceRegionMean(withDefaultProjection(image, q.Scale), point(q.Site), q.Scale),
		},
	}
}
