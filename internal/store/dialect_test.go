package store

import (
	"testing"
	"time"
)

func TestParamBuilder_Postgres(t *testing.T) {
	pb := (&PostgresDialect{}).NewParamBuilder()

	p1 := pb.Add("a")
	p2 := pb.Add(42)
	if p1 != "$1" || p2 != "$2" {
		t.Fatalf("expected $1 and $2, got %s and %s", p1, p2)
	}
	params := pb.Params()
	if len(params) != 2 || params[0] != "a" || params[1] != 42 {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestParamBuilder_SQLite(t *testing.T) {
	pb := (&SQLiteDialect{}).NewParamBuilder()

	p1 := pb.Add("a")
	p2 := pb.Add(42)
	if p1 != "?1" || p2 != "?2" {
		t.Fatalf("expected ?1 and ?2, got %s and %s", p1, p2)
	}
}

func TestTimeParam(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))

	pg := (&PostgresDialect{}).TimeParam(ts)
	if got, ok := pg.(time.Time); !ok || !got.Equal(ts) || got.Location() != time.UTC {
		t.Fatalf("expected UTC time.Time, got %v", pg)
	}

	sq := (&SQLiteDialect{}).TimeParam(ts)
	s, ok := sq.(string)
	if !ok {
		t.Fatalf("expected string, got %T", sq)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	if !parsed.Equal(ts) {
		t.Fatalf("expected %v, got %v", ts, parsed)
	}
}

func TestScanTime(t *testing.T) {
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	for _, v := range []any{
		want,
		"2024-03-15T09:30:00Z",
		[]byte("2024-03-15T09:30:00Z"),
		"2024-03-15 09:30:00",
	} {
		got, err := scanTime(v)
		if err != nil {
			t.Fatalf("scan %T %v: %v", v, v, err)
		}
		if !got.Equal(want) {
			t.Fatalf("scan %T: expected %v, got %v", v, want, got)
		}
	}

	if _, err := scanTime(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if _, err := scanTime("not a time"); err == nil {
		t.Fatal("expected error for unparseable string")
	}
}

func TestScanBool(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{int64(1), true},
		{int64(0), false},
		{nil, false},
	}
	for _, tc := range cases {
		got, err := scanBool(tc.in)
		if err != nil {
			t.Fatalf("scan %T %v: %v", tc.in, tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("scan %v: expected %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := scanBool("yes"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
