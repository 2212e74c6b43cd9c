package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// FILTER TESTS
// ============================================================================

func TestApplyFilterEnergy(t *testing.T) {
	view := NewSliceView(sectorFixture())
	got := ApplyFilter(view, schema.Sector, "Energy")

	if got.Len() != 3 {
		t.Fatalf("filtered %d records, want 3", got.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if s, _ := got.At(i).Category(schema.Sector); s != "Energy" {
			t.Errorf("record %d sector = %q", i, s)
		}
	}
}

func TestApplyFilterNoneReturnsInput(t *testing.T) {
	view := NewSliceView(sectorFixture())
	if got := ApplyFilter(view, schema.None, "Energy"); got != view {
		t.Error("category none should return the input view")
	}
	if got := ApplyFilter(view, schema.Sector, "  "); got != view {
		t.Error("empty value should return the input view")
	}
}

func TestApplyFilterOnlyMatches(t *testing.T) {
	records := []Observation{
		obs(schema.Region, "Asia"),
		obs(schema.Region, " Asia "),
		obs(schema.Region, nil),
		obs(schema.Country, "India"),
		obs(schema.Region, "Europe"),
	}
	got := ApplyFilter(NewSliceView(records), schema.Region, "Asia")
	if got.Len() != 2 {
		t.Errorf("filtered %d records, want 2 (trimmed match only)", got.Len())
	}
}

func TestFilterStateValidate(t *testing.T) {
	tests := []struct {
		name string
		f    FilterState
		err  error
	}{
		{"none", NoFilter(), nil},
		{"none with value", FilterState{Category: schema.None, Value: "Energy"}, ErrInvalidFilter},
		{"categorical", FilterState{Category: schema.Topic, Value: "oil"}, nil},
		{"numeric", FilterState{Category: schema.Intensity, Value: "3"}, ErrFieldKind},
		{"unknown", FilterState{Category: "colour", Value: "red"}, ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.err == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

type domainStub struct {
	values map[schema.Field][]string
	calls  int
	err    error
}

func (d *domainStub) CategoryDomain(_ context.Context, f schema.Field) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.values[f], nil
}

func TestDomainOfLocal(t *testing.T) {
	e := NewFilterEngine()
	store := NewRecordStore()
	e.Reset(store.Replace(sectorFixture()))

	got, err := e.DomainOf(context.Background(), schema.Pestle)
	if err != nil {
		t.Fatalf("DomainOf: %v", err)
	}
	want := []string{"Economic", "Political", "Social"}
	if len(got) != len(want) {
		t.Fatalf("domain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("domain[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDomainOfSourceSortedAndCached(t *testing.T) {
	stub := &domainStub{values: map[schema.Field][]string{
		schema.Region: {"oceania", "Asia", "", "Europe", "Asia", "africa"},
	}}
	e := NewFilterEngine(WithDomainSource(stub))

	got, err := e.DomainOf(context.Background(), schema.Region)
	if err != nil {
		t.Fatalf("DomainOf: %v", err)
	}
	want := []string{"africa", "Asia", "Europe", "oceania"}
	if len(got) != len(want) {
		t.Fatalf("domain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("domain[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := e.DomainOf(context.Background(), schema.Region); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 1 {
		t.Errorf("source called %d times, want 1 (cached)", stub.calls)
	}

	e.Reset(NewRecordStore().Replace(nil))
	if _, err := e.DomainOf(context.Background(), schema.Region); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 2 {
		t.Errorf("source called %d times after reset, want 2", stub.calls)
	}
}

func TestDomainOfEmptyAndErrors(t *testing.T) {
	stub := &domainStub{}
	e := NewFilterEngine(WithDomainSource(stub))

	got, err := e.DomainOf(context.Background(), schema.Country)
	if err != nil || len(got) != 0 {
		t.Errorf("unknown domain = %v, %v; want empty, nil", got, err)
	}
	if got, err := e.DomainOf(context.Background(), schema.None); err != nil || len(got) != 0 {
		t.Errorf("none domain = %v, %v", got, err)
	}

	stub.err = errors.New("timeout")
	if _, err := e.DomainOf(context.Background(), schema.Topic); !errors.Is(err, stub.err) {
		t.Errorf("err = %v, want wrapped timeout", err)
	}
}
