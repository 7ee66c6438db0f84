package settings

import "testing"

// TestGetReturnsDefaultsForUnknownGuild ensures Get is total over the map.
func TestGetReturnsDefaultsForUnknownGuild(t *testing.T) {
	s := NewStore()
	got := s.Get("g1")
	want := Settings{ShuffleEnabled: false, RepeatMode: RepeatOff, Volume: DefaultVolume}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

// TestSetMergesPartialPatch ensures unspecified fields are retained.
func TestSetMergesPartialPatch(t *testing.T) {
	s := NewStore()
	s.Set("g1", Patch{Volume: Int(40), RepeatMode: Mode(RepeatAll)})

	got := s.Set("g1", Patch{ShuffleEnabled: Bool(true)})
	if !got.ShuffleEnabled {
		t.Fatalf("ShuffleEnabled = false, want true")
	}
	if got.Volume != 40 {
		t.Fatalf("Volume = %d, want 40 (retained)", got.Volume)
	}
	if got.RepeatMode != RepeatAll {
		t.Fatalf("RepeatMode = %q, want %q (retained)", got.RepeatMode, RepeatAll)
	}
}

// TestSetClampsOutOfRangeValues ensures volume and repeat mode are clamped,
// not rejected.
func TestSetClampsOutOfRangeValues(t *testing.T) {
	tcs := []struct {
		name string
		in   Patch
		want Settings
	}{
		{"volume above range", Patch{Volume: Int(150)}, Settings{RepeatMode: RepeatOff, Volume: 100}},
		{"volume below range", Patch{Volume: Int(-5)}, Settings{RepeatMode: RepeatOff, Volume: 0}},
		{"bogus repeat mode", Patch{RepeatMode: Mode("forever")}, Settings{RepeatMode: RepeatOff, Volume: DefaultVolume}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			if got := s.Set("g1", tc.in); got != tc.want {
				t.Fatalf("Set = %+v, want %+v", got, tc.want)
			}
		})
	}
}

// TestSetIsIdempotentForSameVolume ensures repeating a volume write changes
// nothing the second time.
func TestSetIsIdempotentForSameVolume(t *testing.T) {
	s := NewStore()
	first := s.Set("g1", Patch{Volume: Int(55)})
	second := s.Set("g1", Patch{Volume: Int(55)})
	if first != second {
		t.Fatalf("second Set = %+v, want %+v", second, first)
	}
}

// TestDeleteForgetsEntry ensures a deleted guild reads defaults again.
func TestDeleteForgetsEntry(t *testing.T) {
	s := NewStore()
	s.Set("g1", Patch{Volume: Int(10)})
	s.Delete("g1")
	if got := s.Get("g1"); got.Volume != DefaultVolume {
		t.Fatalf("Volume after delete = %d, want %d", got.Volume, DefaultVolume)
	}
}
