package tensor

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestDenseConversion(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	tt := FromDense(m)
	if tt.At(1, 2) != 6 {
		t.Fatalf("At(1,2) = %f, want 6", tt.At(1, 2))
	}
	back, err := tt.Dense()
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(m, back) {
		t.Fatalf("round trip mismatch:\n%v\n%v", mat.Formatted(m), mat.Formatted(back))
	}
	back.Set(0, 0, 42)
	if tt.Data[0] != 1 {
		t.Fatalf("Dense must copy, tensor changed to %f", tt.Data[0])
	}
}

func TestDenseVector(t *testing.T) {
	v := NewWithData([]float64{1, 2, 3})
	m, err := v.Dense()
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Dims(); r != 1 || c != 3 {
		t.Fatalf("dims = %dx%d, want 1x3", r, c)
	}
}

func TestDenseRejectsHigherRank(t *testing.T) {
	if _, err := New(2, 2, 2).Dense(); err == nil {
		t.Fatal("expected error for 3-D tensor")
	}
}

func TestSetAt(t *testing.T) {
	tt := New(2, 2)
	tt.Set(7, 1, 0)
	if tt.Data[2] != 7 || tt.At(1, 0) != 7 {
		t.Fatalf("Set/At mismatch: %v", tt.Data)
	}
}
