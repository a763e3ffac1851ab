package series

import (
	"math/rand"
	"testing"
	"time"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func hourly(n int) *TimestampSeries {
	s := New("t")
	for i := 0; i < n; i++ {
		s.Append(base.Add(time.Duration(i)*time.Hour), float64(i))
	}
	return s
}

func TestTrim_HalfOpen(t *testing.T) {
	s := hourly(10)

	start := base.Add(2 * time.Hour)
	end := base.Add(5 * time.Hour)
	s.Trim(start, end)

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	want := []float64{2, 3, 4}
	for i, v := range want {
		if s.Values[i] != v {
			t.Errorf("Values[%d] = %v, want %v", i, s.Values[i], v)
		}
	}
	if !s.Timestamps[0].Equal(start) {
		t.Errorf("first timestamp = %v, want %v (start is inclusive)", s.Timestamps[0], start)
	}
}

func TestTrim_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		s := New("t")
		n := rng.Intn(50)
		for i := 0; i < n; i++ {
			s.Append(base.Add(time.Duration(rng.Intn(100))*time.Hour), rng.Float64())
		}
		a := base.Add(time.Duration(rng.Intn(100)) * time.Hour)
		b := a.Add(time.Duration(rng.Intn(60)) * time.Hour)

		s.Trim(a, b)

		if !s.LengthsEqual() {
			t.Fatalf("iter %d: lengths differ: %d vs %d", iter, len(s.Timestamps), len(s.Values))
		}
		for _, ts := range s.Timestamps {
			if ts.Before(a) || !ts.Before(b) {
				t.Fatalf("iter %d: timestamp %v outside [%v, %v)", iter, ts, a, b)
			}
		}
	}
}

func TestTrim_EmptyWindowRemovesAll(t *testing.T) {
	s := hourly(5)
	s.Trim(base.Add(time.Hour), base.Add(time.Hour))
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestTrim_LargeInputKeepsOrderInPlace(t *testing.T) {
	const n = 200_000
	s := New("t")
	for i := 0; i < n; i++ {
		s.Append(base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	capTS, capV := cap(s.Timestamps), cap(s.Values)

	s.Trim(base.Add(n/2*time.Minute), base.Add(n*time.Minute))

	if s.Len() != n/2 {
		t.Fatalf("Len() = %d, want %d", s.Len(), n/2)
	}
	for i, v := range s.Values {
		want := float64(n/2 + i)
		if v != want || !s.Timestamps[i].Equal(base.Add(time.Duration(want)*time.Minute)) {
			t.Fatalf("pair %d = (%v, %v), want value %v", i, s.Timestamps[i], v, want)
		}
	}
	if cap(s.Timestamps) != capTS || cap(s.Values) != capV {
		t.Error("Trim reallocated; want in-place compaction")
	}
}

func TestTrim_MismatchedLengthsEmpties(t *testing.T) {
	s := &TimestampSeries{Timestamps: []time.Time{base, base.Add(time.Hour)}, Values: []float64{1}}
	s.Trim(base, base.Add(24*time.Hour))
	if len(s.Timestamps) != 0 || len(s.Values) != 0 {
		t.Errorf("got %d timestamps, %d values, want both empty", len(s.Timestamps), len(s.Values))
	}
}

func BenchmarkTrim_KeepHalf(b *testing.B) {
	const n = 100_000
	src := New("t")
	for i := 0; i < n; i++ {
		src.Append(base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	start, end := base.Add(n/2*time.Minute), base.Add(n*time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := src.Clone()
		s.Trim(start, end)
	}
}

func TestSort_PermutesValuesWithTimestamps(t *testing.T) {
	s := New("t")
	s.Append(base.Add(3*time.Hour), 3)
	s.Append(base.Add(1*time.Hour), 1)
	s.Append(base.Add(2*time.Hour), 2)

	s.Sort()

	for i := 0; i < 3; i++ {
		if s.Values[i] != float64(i+1) {
			t.Errorf("Values[%d] = %v, want %v", i, s.Values[i], i+1)
		}
		if !s.Timestamps[i].Equal(base.Add(time.Duration(i+1) * time.Hour)) {
			t.Errorf("Timestamps[%d] = %v", i, s.Timestamps[i])
		}
	}
}

func TestSort_Stable(t *testing.T) {
	s := New("t")
	s.Append(base.Add(time.Hour), 10)
	s.Append(base, 0)
	s.Append(base.Add(time.Hour), 11)

	s.Sort()

	want := []float64{0, 10, 11}
	for i, v := range want {
		if s.Values[i] != v {
			t.Errorf("Values[%d] = %v, want %v", i, s.Values[i], v)
		}
	}
}

func TestSort_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := New("t")
	for i := 0; i < 40; i++ {
		s.Append(base.Add(time.Duration(rng.Intn(20))*time.Minute), float64(i))
	}

	s.Sort()
	once := s.Clone()
	s.Sort()

	for i := range once.Values {
		if once.Values[i] != s.Values[i] || !once.Timestamps[i].Equal(s.Timestamps[i]) {
			t.Fatalf("second Sort changed index %d", i)
		}
	}
	if !s.IsSorted() {
		t.Error("IsSorted() = false after Sort")
	}
}

func TestScale(t *testing.T) {
	s := hourly(3)
	s.Scale(2)
	want := []float64{0, 2, 4}
	for i, v := range want {
		if s.Values[i] != v {
			t.Errorf("Values[%d] = %v, want %v", i, s.Values[i], v)
		}
	}
}

func TestLen_MismatchedLengths(t *testing.T) {
	s := &TimestampSeries{Timestamps: []time.Time{base}, Values: nil}
	if s.LengthsEqual() {
		t.Error("LengthsEqual() = true, want false")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
