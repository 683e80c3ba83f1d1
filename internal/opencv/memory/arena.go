package memory

import (
	"fmt"

	"gocv.io/x/gocv"
)

type tracked struct {
	id  uint64
	mat *gocv.Mat
}

// Arena owns the native matrices of one primitive call. It is not safe for
// concurrent use; each call creates its own.
type Arena struct {
	manager *Manager
	tag     string
	mats    []tracked
}

// NewMat returns an empty matrix for an operation to fill.
func (a *Arena) NewMat() (*gocv.Mat, error) {
	mat := gocv.NewMat()
	return a.adopt(&mat, 0)
}

func (a *Arena) NewMatWithSize(rows, cols int, matType gocv.MatType) (*gocv.Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}
	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}
	return a.adopt(&mat, matSize(rows, cols, matType))
}

// Adopt takes ownership of a matrix produced elsewhere, such as a decoded
// file or a captured frame.
func (a *Arena) Adopt(mat gocv.Mat) (*gocv.Mat, error) {
	return a.adopt(&mat, matSize(mat.Rows(), mat.Cols(), mat.Type()))
}

func (a *Arena) adopt(mat *gocv.Mat, size int64) (*gocv.Mat, error) {
	id, err := a.manager.reserve(size, a.tag)
	if err != nil {
		mat.Close()
		return nil, err
	}
	a.mats = append(a.mats, tracked{id: id, mat: mat})
	return mat, nil
}

func (a *Arena) Len() int {
	return len(a.mats)
}

// Release closes every matrix of the arena, newest first.
func (a *Arena) Release() {
	for i := len(a.mats) - 1; i >= 0; i-- {
		a.mats[i].mat.Close()
		a.manager.release(a.mats[i].id)
	}
	a.mats = nil
}
