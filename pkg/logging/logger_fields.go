package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Lineage field helpers

func Component(name string) Field {
	return String("component", name)
}

// NodeID accepts any string-like identifier so lineage.NodeID can be passed
// without an import cycle.
func NodeID[T ~string](id T) Field {
	return String("node_id", string(id))
}

func AnalysisID(id string) Field {
	return String("analysis_id", id)
}

func Direction(d interface{ String() string }) Field {
	return String("direction", d.String())
}

func Depth(d int) Field {
	return Int("depth", d)
}

func Attempt(n int) Field {
	return Int("attempt", n)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
