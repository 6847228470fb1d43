package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/hermes/config"
)

const districtCSV = "\ufeffdistrict_geocode,city,district\n110100,北京,北京\n110105,北京,朝阳\n220106,长春,朝阳\n"

func TestLoadDistrictsFirstCodeWins(t *testing.T) {
	d, err := LoadDistricts(strings.NewReader(districtCSV))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if code, _ := d.Lookup("朝阳"); code != "110105" {
		t.Fatalf("code = %q", code)
	}
	if _, err := d.Lookup("nowhere"); !errors.Is(err, ErrUnknownDistrict) {
		t.Fatalf("expected ErrUnknownDistrict, got %v", err)
	}
}

func TestLoadDistrictsMissingColumns(t *testing.T) {
	if _, err := LoadDistricts(strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInvoke(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"status":0,"result":{"now":{"text":"sunny","temp":21,"feels_like":20,"rh":40,"wind_dir":"north","wind_class":"3"}}}`))
	}))
	defer srv.Close()

	d, _ := LoadDistricts(strings.NewReader(districtCSV))
	tool := New(config.WeatherConfig{Endpoint: srv.URL, AccessKey: "k"}, d)
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"location":"北京"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "sunny") || !strings.Contains(out, "21°C") {
		t.Fatalf("unexpected reply %q", out)
	}
	for _, want := range []string{"district_id=110100", "data_type=all", "ak=k"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestInvokeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":240,"message":"ak invalid"}`))
	}))
	defer srv.Close()

	d, _ := LoadDistricts(strings.NewReader(districtCSV))
	tool := New(config.WeatherConfig{Endpoint: srv.URL}, d)
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"location":"北京"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != Unavailable {
		t.Fatalf("got %q", out)
	}
}
