package artifact

import "testing"

func TestMatchHashIgnoresCase(t *testing.T) {
	ref := Reference{Name: "a.i64", Hash: "ABCDEF"}
	if !ref.MatchHash("abcdef") {
		t.Fatalf("expected case-insensitive hash match")
	}
	if ref.MatchHash("abcdee") {
		t.Fatalf("unexpected hash match")
	}
}

func TestMatchNameCompat(t *testing.T) {
	ref := Reference{Hash: "00"}
	if !ref.Compat() {
		t.Fatalf("expected compatibility mode")
	}
	if !ref.MatchName("anything.idb") {
		t.Fatalf("compat reference should match any name")
	}
	named := Reference{Name: "x.idb", Hash: "00"}
	if named.MatchName("y.idb") {
		t.Fatalf("named reference matched wrong name")
	}
}

func TestAdoptExtension(t *testing.T) {
	if HasExtension("/tmp/foo") {
		t.Fatalf("unexpected extension on bare path")
	}
	if !HasExtension("/tmp/foo.i64") {
		t.Fatalf("expected i64 extension")
	}
	got := AdoptExtension("/tmp/foo", "foo.idb")
	if got != "/tmp/foo.idb" {
		t.Fatalf("unexpected adopted path: %q", got)
	}
}
