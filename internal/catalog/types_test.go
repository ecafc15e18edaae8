package catalog

import "testing"

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		got, err := ParseStatus(s)
		if err != nil || string(got) != s {
			t.Fatalf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("deleted"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestListQueryNormalize(t *testing.T) {
	tests := []struct {
		in   ListQuery
		want ListQuery
	}{
		{ListQuery{}, ListQuery{Page: 1, Limit: 20}},
		{ListQuery{Page: -3, Limit: 500}, ListQuery{Page: 1, Limit: 100}},
		{ListQuery{Status: StatusPending, Page: 2, Limit: 5}, ListQuery{Status: StatusPending, Page: 2, Limit: 5}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
