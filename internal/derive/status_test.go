package derive

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    Values
		want Status
	}{
		{name: "upcoming wins regardless of other fields", v: Values{Upcoming: 50, Received: 100, Total: 100, Annual: 500}, want: StatusPendingRenewal},
		{name: "nothing received yet", v: Values{Total: 100}, want: StatusInProgress},
		{name: "partially received without recurring", v: Values{Received: 40, Total: 100}, want: StatusInProgress},
		{name: "nothing received beats recurring", v: Values{Total: 100, Annual: 120}, want: StatusInProgress},
		{name: "partially received with recurring", v: Values{Received: 40, Total: 100, Annual: 120}, want: StatusRecurring},
		{name: "recurring", v: Values{Received: 100, Total: 100, Annual: 120}, want: StatusRecurring},
		{name: "complete", v: Values{Received: 100, Total: 100}, want: StatusComplete},
		{name: "empty board", v: Values{}, want: StatusNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.v); got != tt.want {
				t.Errorf("Classify(%+v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}
