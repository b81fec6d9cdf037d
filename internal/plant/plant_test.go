package plant

import (
	"errors"
	"strings"
	"testing"
)

func TestTagsFor(t *testing.T) {
	tags := TagsFor("B2003")
	if tags.Bed != "B2003" {
		t.Errorf("Bed: got %q", tags.Bed)
	}
	if tags.Prox1 != "B2003_PRX_OL1" {
		t.Errorf("Prox1: got %q, want B2003_PRX_OL1", tags.Prox1)
	}
	if tags.Prox2 != "B2003_PRX_OL2" {
		t.Errorf("Prox2: got %q, want B2003_PRX_OL2", tags.Prox2)
	}
}

func TestDefaultTable(t *testing.T) {
	tbl := Default()
	if err := tbl.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	if len(tbl) != 3 {
		t.Fatalf("expected 3 controllers, got %d", len(tbl))
	}
	want := []struct {
		label, addr string
		beds        []string
	}{
		{"Sorter A", "192.168.0.10", []string{"B1001", "B1002", "B1003"}},
		{"Sorter B", "192.168.0.11", []string{"B2001", "B2002", "B2003"}},
		{"Sorter C", "192.168.0.12", []string{"B3001", "B3002", "B3003"}},
	}
	for i, w := range want {
		c := tbl[i]
		if c.Label != w.label || c.Address != w.addr {
			t.Errorf("controller %d: got %s/%s, want %s/%s", i, c.Label, c.Address, w.label, w.addr)
		}
		if strings.Join(c.Beds, ",") != strings.Join(w.beds, ",") {
			t.Errorf("controller %d beds: got %v, want %v", i, c.Beds, w.beds)
		}
		if c.SourceKind() != KindMQTT {
			t.Errorf("controller %d: expected default kind mqtt, got %s", i, c.SourceKind())
		}
	}
}

func TestLookup(t *testing.T) {
	tbl := Default()

	c, err := tbl.Lookup("192.168.0.11", "B2002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Label != "Sorter B" {
		t.Errorf("expected Sorter B, got %s", c.Label)
	}

	_, err = tbl.Lookup("192.168.0.11", "B1001")
	if !errors.Is(err, ErrUnknownBed) {
		t.Errorf("expected ErrUnknownBed for bed on other controller, got %v", err)
	}

	_, err = tbl.Lookup("10.0.0.1", "B1001")
	if !errors.Is(err, ErrUnknownController) {
		t.Errorf("expected ErrUnknownController, got %v", err)
	}
}

func TestFindBed(t *testing.T) {
	c, err := Default().FindBed("B3002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Address != "192.168.0.12" {
		t.Errorf("expected 192.168.0.12, got %s", c.Address)
	}

	if _, err := Default().FindBed("B9999"); !errors.Is(err, ErrUnknownBed) {
		t.Errorf("expected ErrUnknownBed, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{"empty", Table{}, "no controllers"},
		{"no address", Table{{Label: "X", Beds: []string{"B1"}}}, "no address"},
		{"duplicate address", Table{
			{Address: "a", Beds: []string{"B1"}},
			{Address: "a", Beds: []string{"B2"}},
		}, "duplicate controller address"},
		{"no beds", Table{{Address: "a"}}, "no beds"},
		{"duplicate bed", Table{{Address: "a", Beds: []string{"B1", "B1"}}}, "twice"},
		{"empty bed", Table{{Address: "a", Beds: []string{""}}}, "empty bed"},
		{"unknown kind", Table{{Address: "a", Kind: "modbus", Beds: []string{"B1"}}}, "unknown kind"},
		{"valid sim", Table{{Address: "a", Kind: KindSim, Beds: []string{"B1"}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
