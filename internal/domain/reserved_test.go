package domain

import "testing"

func TestIsReservedName(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"Unsorted", true},
		{"unsorted", true},
		{"  UNSORTED  ", true},
		{"Unsorted stuff", false},
		{"Travel", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsReservedName(tc.value); got != tc.want {
			t.Fatalf("IsReservedName(%q) = %v, ожидали %v", tc.value, got, tc.want)
		}
	}
}

func TestContainsReservedName(t *testing.T) {
	if !ContainsReservedName("My unsorted pile") {
		t.Fatalf("ожидали совпадение по подстроке")
	}
	if ContainsReservedName("Travel tips") {
		t.Fatalf("не ожидали совпадения")
	}
}

func TestHiddenFromViewer(t *testing.T) {
	own := Collection{OwnerID: "u1", Name: DefaultCollectionName}
	if HiddenFromViewer(own, "u1") {
		t.Fatalf("собственная корзина не должна скрываться")
	}
	foreign := Collection{OwnerID: "u2", Name: DefaultCollectionName}
	if !HiddenFromViewer(foreign, "u1") {
		t.Fatalf("чужая корзина по умолчанию должна скрываться")
	}
	plain := Collection{OwnerID: "u2", Name: "Recipes"}
	if HiddenFromViewer(plain, "u1") {
		t.Fatalf("обычная чужая коллекция должна быть видна")
	}
}
