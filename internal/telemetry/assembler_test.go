package telemetry

import (
	"testing"

	"github.com/phuslu/log"
)

func testLogger() log.Logger {
	return log.Logger{Level: log.PanicLevel}
}

func collect(out *[]Report) func(Report) {
	return func(r Report) { *out = append(*out, r) }
}

func TestEmitsOnceAllFieldsSeen(t *testing.T) {
	var got []Report
	a := NewAssembler("collar/", collect(&got), testLogger())

	a.HandleFragment("collar/860000000000001/Position/latitude", []byte("52.37"))
	a.HandleFragment("collar/860000000000001/bark", []byte("3"))
	a.HandleFragment("collar/860000000000001/battery", []byte("81"))
	if len(got) != 0 {
		t.Fatalf("emitted %d reports before completeness", len(got))
	}
	a.HandleFragment("collar/860000000000001/Position/longitude", []byte("4.89"))
	if len(got) != 1 {
		t.Fatalf("emitted %d reports, want 1", len(got))
	}
	r := got[0]
	if r.DeviceID != "860000000000001" || r.Latitude != 52.37 || r.Longitude != 4.89 || r.Battery != 81 || r.Bark != 3 {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestBufferRetainedAfterEmit(t *testing.T) {
	var got []Report
	a := NewAssembler("collar/", collect(&got), testLogger())

	a.HandleFragment("collar/dev1/Position/latitude", []byte("1"))
	a.HandleFragment("collar/dev1/Position/longitude", []byte("2"))
	a.HandleFragment("collar/dev1/battery", []byte("50"))
	a.HandleFragment("collar/dev1/bark", []byte("0"))
	if len(got) != 1 {
		t.Fatalf("emitted %d reports, want 1", len(got))
	}

	// A lone battery update after the first full report must produce a
	// fresh report from the merged state.
	a.HandleFragment("collar/dev1/battery", []byte("49"))
	if len(got) != 2 {
		t.Fatalf("emitted %d reports, want 2", len(got))
	}
	r := got[1]
	if r.Battery != 49 || r.Latitude != 1 || r.Longitude != 2 || r.Bark != 0 {
		t.Errorf("retained state lost: %+v", r)
	}
}

func TestDevicesBufferedIndependently(t *testing.T) {
	var got []Report
	a := NewAssembler("collar/", collect(&got), testLogger())

	a.HandleFragment("collar/dev1/Position/latitude", []byte("1"))
	a.HandleFragment("collar/dev1/Position/longitude", []byte("2"))
	a.HandleFragment("collar/dev2/battery", []byte("10"))
	a.HandleFragment("collar/dev2/bark", []byte("1"))
	if len(got) != 0 {
		t.Fatalf("cross-device fragments produced %d reports", len(got))
	}
}

func TestMalformedFragmentsDropped(t *testing.T) {
	var got []Report
	a := NewAssembler("collar/", collect(&got), testLogger())

	a.HandleFragment("other/dev1/battery", []byte("50"))
	a.HandleFragment("collar/dev1", []byte("50"))
	a.HandleFragment("collar/dev1/temperature", []byte("21"))
	a.HandleFragment("collar/dev1/battery", []byte("full"))
	a.HandleFragment("collar/dev1/Position/latitude", []byte("north"))
	if len(got) != 0 {
		t.Fatalf("malformed fragments produced %d reports", len(got))
	}

	// The device must still complete normally afterwards.
	a.HandleFragment("collar/dev1/Position/latitude", []byte("1"))
	a.HandleFragment("collar/dev1/Position/longitude", []byte("2"))
	a.HandleFragment("collar/dev1/battery", []byte("50"))
	a.HandleFragment("collar/dev1/bark", []byte("0"))
	if len(got) != 1 {
		t.Fatalf("emitted %d reports, want 1", len(got))
	}
}

func TestDuplicateFragmentBeforeCompleteness(t *testing.T) {
	var got []Report
	a := NewAssembler("collar/", collect(&got), testLogger())

	a.HandleFragment("collar/dev1/battery", []byte("50"))
	a.HandleFragment("collar/dev1/battery", []byte("48"))
	if len(got) != 0 {
		t.Fatalf("incomplete buffer emitted %d reports", len(got))
	}
	a.HandleFragment("collar/dev1/Position/latitude", []byte("1"))
	a.HandleFragment("collar/dev1/Position/longitude", []byte("2"))
	a.HandleFragment("collar/dev1/bark", []byte("0"))
	if len(got) != 1 {
		t.Fatalf("emitted %d reports, want 1", len(got))
	}
	if got[0].Battery != 48 {
		t.Errorf("battery = %d, want latest value 48", got[0].Battery)
	}
}
