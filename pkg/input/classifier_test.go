package input

import (
	"testing"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/geometry"
)

type recorded struct {
	intent component.Intent
	p      geometry.Point
}

type recorder struct {
	got []recorded
}

func (r *recorder) Dispatch(intent component.Intent, p geometry.Point) {
	r.got = append(r.got, recorded{intent, p})
}

func TestClassifier(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    []recorded
	}{
		{
			name: "tap",
			samples: []Sample{
				{PointerDown, geometry.Pt(50, 50)},
				{PointerUp, geometry.Pt(50, 50)},
			},
			want: []recorded{{component.Tap, geometry.Pt(50, 50)}},
		},
		{
			name: "small wobble is still a tap",
			samples: []Sample{
				{PointerDown, geometry.Pt(50, 50)},
				{PointerMove, geometry.Pt(53, 54)},
				{PointerUp, geometry.Pt(53, 54)},
			},
			want: []recorded{{component.Tap, geometry.Pt(53, 54)}},
		},
		{
			name: "drag",
			samples: []Sample{
				{PointerDown, geometry.Pt(50, 50)},
				{PointerMove, geometry.Pt(65, 50)},
				{PointerMove, geometry.Pt(80, 50)},
				{PointerUp, geometry.Pt(80, 50)},
			},
			want: []recorded{
				{component.DragStart, geometry.Pt(65, 50)},
				{component.Drag, geometry.Pt(80, 50)},
				{component.DragEnd, geometry.Pt(80, 50)},
			},
		},
		{
			name: "single crossing move starts and ends a drag",
			samples: []Sample{
				{PointerDown, geometry.Pt(0, 0)},
				{PointerMove, geometry.Pt(4, 4)},
				{PointerMove, geometry.Pt(0, 30)},
				{PointerUp, geometry.Pt(0, 30)},
			},
			want: []recorded{
				{component.DragStart, geometry.Pt(0, 30)},
				{component.DragEnd, geometry.Pt(0, 30)},
			},
		},
		{
			name: "moves back inside threshold keep dragging",
			samples: []Sample{
				{PointerDown, geometry.Pt(0, 0)},
				{PointerMove, geometry.Pt(20, 0)},
				{PointerMove, geometry.Pt(2, 0)},
				{PointerUp, geometry.Pt(2, 0)},
			},
			want: []recorded{
				{component.DragStart, geometry.Pt(20, 0)},
				{component.Tap, geometry.Pt(2, 0)},
			},
		},
		{
			name: "exactly at threshold is not a drag",
			samples: []Sample{
				{PointerDown, geometry.Pt(0, 0)},
				{PointerMove, geometry.Pt(10, 0)},
				{PointerUp, geometry.Pt(10, 0)},
			},
			want: []recorded{{component.Tap, geometry.Pt(10, 0)}},
		},
		{
			name: "move without down is ignored",
			samples: []Sample{
				{PointerMove, geometry.Pt(100, 100)},
				{PointerUp, geometry.Pt(100, 100)},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			c := NewClassifier(r)
			c.Feed(tt.samples)
			if len(r.got) != len(tt.want) {
				t.Fatalf("got %v, want %v", r.got, tt.want)
			}
			for i := range tt.want {
				if r.got[i] != tt.want[i] {
					t.Errorf("intent %d = %v, want %v", i, r.got[i], tt.want[i])
				}
			}
			if c.Active() {
				t.Error("classifier still active after pointer up")
			}
		})
	}
}

func TestClassifierReset(t *testing.T) {
	r := &recorder{}
	c := NewClassifier(r)
	c.Down(geometry.Pt(0, 0))
	c.Reset()
	c.Up(geometry.Pt(0, 0))
	if len(r.got) != 0 {
		t.Errorf("Reset gesture produced %v", r.got)
	}
}
