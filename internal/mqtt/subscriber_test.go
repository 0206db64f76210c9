package mqtt

import (
	"errors"
	"testing"

	"github.com/sweeney/chamber-control/internal/temp"
)

type recordingSink struct{ got []temp.Temp }

func (r *recordingSink) Set(t temp.Temp) { r.got = append(r.got, t) }

func TestParseReading(t *testing.T) {
	tests := []struct {
		payload string
		want    temp.Temp
		wantErr bool
	}{
		{"19.5", temp.Celsius(19.5), false},
		{" -2.25\n", temp.Celsius(-2.25), false},
		{`{"temperature": 4}`, temp.Celsius(4), false},
		{`{"temperature": null}`, temp.Undefined(), false},
		{`{}`, temp.Undefined(), false},
		{"", temp.Undefined(), false},
		{"null", temp.Undefined(), false},
		{"warm", temp.Undefined(), true},
		{"NaN", temp.Undefined(), true},
		{"+Inf", temp.Undefined(), true},
		{`{"temperature": "hot"}`, temp.Undefined(), true},
		{`{"temperature":`, temp.Undefined(), true},
	}

	for _, tt := range tests {
		got, err := ParseReading([]byte(tt.payload))
		if tt.wantErr {
			if !errors.Is(err, ErrBadReading) {
				t.Errorf("ParseReading(%q): expected ErrBadReading, got %v", tt.payload, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReading(%q): unexpected error: %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReading(%q) = %s, want %s", tt.payload, got, tt.want)
		}
	}
}

func TestSensorTopic(t *testing.T) {
	if got := SensorTopic(DefaultSensorPrefix, "beer"); got != "chamber/sensor/beer" {
		t.Errorf("unexpected topic %s", got)
	}
	if got := SensorTopic("a/b/", "fridge"); got != "a/b/fridge" {
		t.Errorf("unexpected topic %s", got)
	}
}

func TestSubscriberRoutesReadings(t *testing.T) {
	s := NewSubscriber(nil, "chamber/sensor/", nil)
	beer := &recordingSink{}
	fridge := &recordingSink{}
	s.Add("beer", beer)
	s.Add("fridge", fridge)

	s.handle("chamber/sensor/beer", []byte("18.5"))
	s.handle("chamber/sensor/fridge", []byte(`{"temperature": 3}`))
	s.handle("chamber/sensor/fridge", []byte("garbage"))
	s.handle("chamber/sensor/ambient", []byte("21"))
	s.handle("other/topic", []byte("21"))
	s.handle("chamber/sensor/", []byte("21"))
	s.handle("chamber/sensor/beer", nil)

	if len(beer.got) != 2 || beer.got[0] != temp.Celsius(18.5) || beer.got[1].Defined() {
		t.Errorf("unexpected beer readings: %v", beer.got)
	}
	if len(fridge.got) != 1 || fridge.got[0] != temp.Celsius(3) {
		t.Errorf("unexpected fridge readings: %v", fridge.got)
	}
}
