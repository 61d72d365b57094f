package sqlite

import (
	"database/sql/driver"
	"fmt"
	"math"

	"github.com/kozaktomas/face-login/internal/vecmath"
	moderncsqlite "modernc.org/sqlite"
)

// l2DistanceFunc is the SQL name of the Euclidean distance between two vector BLOBs.
const l2DistanceFunc = "face_l2_distance"

func init() {
	// Deterministic: same input blobs produce the same distance.
	if err := moderncsqlite.RegisterDeterministicScalarFunction(l2DistanceFunc, 2, l2Distance); err != nil {
		panic(fmt.Sprintf("register %s: %v", l2DistanceFunc, err))
	}
}

// l2Distance returns the distance as float64. Mismatched lengths return MaxFloat64
// so they never pass a threshold filter.
func l2Distance(ctx *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s expects 2 arguments", l2DistanceFunc)
	}
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	d := vecmath.Euclidean(a, b)
	if math.IsInf(d, 1) {
		return math.MaxFloat64, nil
	}
	return d, nil
}

func blobArg(v driver.Value) ([]float32, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%s: expected BLOB argument, got %T", l2DistanceFunc, v)
	}
	return decodeVector(b)
}
