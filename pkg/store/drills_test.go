package store

import (
	"reflect"
	"testing"
)

func TestDecodeDrillsNativeArray(t *testing.T) {
	got := DecodeDrills([]byte(`["Tee work","Front toss"]`))
	want := []string{"Tee work", "Front toss"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DecodeDrills array = %v, want %v", got, want)
	}
}

func TestDecodeDrillsEncodedString(t *testing.T) {
	got := DecodeDrills([]byte(`"[\"Tee work\",\"Front toss\"]"`))
	want := []string{"Tee work", "Front toss"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DecodeDrills encoded string = %v, want %v", got, want)
	}
}

func TestDecodeDrillsBareString(t *testing.T) {
	got := DecodeDrills([]byte(`"Tee work"`))
	want := []string{"Tee work"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DecodeDrills bare string = %v, want %v", got, want)
	}
}

func TestDecodeDrillsMalformedDegradesToSingleton(t *testing.T) {
	got := DecodeDrills([]byte(`"[\"Tee work\", broken"`))
	if len(got) != 1 {
		t.Fatalf("undecodable string should yield one element, got %v", got)
	}
}

func TestDecodeDrillsEmptyPayloads(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(``), []byte(`""`), []byte(`[]`)} {
		got := DecodeDrills(raw)
		if got == nil || len(got) != 0 {
			t.Fatalf("DecodeDrills(%q) = %v, want empty slice", raw, got)
		}
	}
}

func TestDecodeDrillsDropsBlankEntries(t *testing.T) {
	got := DecodeDrills([]byte(`["Tee work","  ",""]`))
	want := []string{"Tee work"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DecodeDrills = %v, want %v", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := []string{"Tee work", "Front toss", "Mirror swings"}
	got := DecodeDrills(EncodeDrills(want))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %v, want %v", got, want)
	}
}
