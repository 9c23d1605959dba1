package endpoints

import (
	"testing"

	"github.com/glueous/reader/internal/document"
)

func TestParseClip(t *testing.T) {
	tests := []struct {
		in      string
		want    *document.Rect
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "0,0,10,20", want: &document.Rect{X1: 10, Y1: 20}},
		{in: " 1.5, 2 ,3,4", want: &document.Rect{X0: 1.5, Y0: 2, X1: 3, Y1: 4}},
		{in: "1,2,3", wantErr: true},
		{in: "a,b,c,d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClip(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClip(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ParseClip(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
