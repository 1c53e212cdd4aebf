package texcache

import "testing"

func TestSwizzleKey(t *testing.T) {
	for _, s := range []Swizzle{
		IdentitySwizzle,
		RGBASwizzle,
		{SwizzleB, SwizzleG, SwizzleR, SwizzleOne},
		{SwizzleZero, SwizzleZero, SwizzleZero, SwizzleA},
	} {
		if got := SwizzleFromKey(s.Key()); got != s {
			t.Errorf("SwizzleFromKey(%s.Key()) = %s", s, got)
		}
	}
	if IdentitySwizzle.Key() == RGBASwizzle.Key() {
		t.Error("identity and RGBA swizzles share a key")
	}
}

func TestSwizzleMatrix(t *testing.T) {
	m, k := Swizzle{SwizzleB, SwizzleG, SwizzleR, SwizzleOne}.Matrix()
	want := [4][4]float32{
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 0},
	}
	if m != want {
		t.Errorf("matrix = %v, want %v", m, want)
	}
	if k != [4]float32{0, 0, 0, 1} {
		t.Errorf("constant = %v, want [0 0 0 1]", k)
	}

	m, k = IdentitySwizzle.Matrix()
	for i := range 4 {
		for j := range 4 {
			want := float32(0)
			if i == j {
				want = 1
			}
			if m[i][j] != want {
				t.Errorf("identity m[%d][%d] = %v, want %v", i, j, m[i][j], want)
			}
		}
	}
	if k != [4]float32{} {
		t.Errorf("identity constant = %v", k)
	}
}

func TestSwizzleValid(t *testing.T) {
	if !RGBASwizzle.valid() {
		t.Error("RGBA swizzle reported invalid")
	}
	if (Swizzle{X: SwizzleA + 1}).valid() {
		t.Error("out of range selector reported valid")
	}
}

func TestSwizzleString(t *testing.T) {
	if got := (Swizzle{SwizzleR, SwizzleZero, SwizzleOne, SwizzleA}).String(); got != "RZeroOneA" {
		t.Errorf("String() = %q", got)
	}
}
