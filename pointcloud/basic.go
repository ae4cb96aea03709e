package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/opencsp/opencsp-go/spatialmath"
)

// PointAndData is a point with its data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// basicPointCloud keeps points in insertion order with a position index.
type basicPointCloud struct {
	points []PointAndData
	index  map[r3.Vector]int
	meta   MetaData
}

// New returns an empty PointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]PointAndData, 0, size),
		index:  make(map[r3.Vector]int, size),
		meta:   NewMetaData(),
	}
}

// NewFromPoints builds a cloud from pts labeled with labels. A nil labels slice leaves
// the points unlabeled.
func NewFromPoints(pts spatialmath.Vxyz, labels []int) (PointCloud, error) {
	if labels != nil && len(labels) != len(pts) {
		return nil, spatialmath.NewInputMismatchError("point and label counts", len(pts), len(labels))
	}
	pc := NewWithPrealloc(len(pts))
	for i, p := range pts {
		d := NewBasicData()
		if labels != nil {
			d = NewValueData(labels[i])
		}
		if err := pc.Set(p, d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(x, y, z float64) (Data, bool) {
	i, ok := cloud.index[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return cloud.points[i].D, true
}

// Set rejects positions that cannot be written to a file.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	for _, c := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Errorf("point %v is not finite", p)
		}
	}
	if i, ok := cloud.index[p]; ok {
		cloud.points[i].D = d
		cloud.meta.Merge(p, d)
		return nil
	}
	cloud.index[p] = len(cloud.points)
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	lo, hi := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		lo = myBatch * batchSize
		hi = lo + batchSize
		if hi > len(cloud.points) {
			hi = len(cloud.points)
		}
	}
	for i := lo; i < hi; i++ {
		if !fn(cloud.points[i].P, cloud.points[i].D) {
			return
		}
	}
}

// Points returns the positions in iteration order.
func Points(cloud PointCloud) spatialmath.Vxyz {
	out := make(spatialmath.Vxyz, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, _ Data) bool {
		out = append(out, p)
		return true
	})
	return out
}
