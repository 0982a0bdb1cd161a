package codec

import "testing"

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{"30000/1001", Rational{30000, 1001}, false},
		{"1/44100", Rational{1, 44100}, false},
		{"25", Rational{25, 1}, false},
		{"29.97", Rational{29970, 1000}, false},
		{" 0/0 ", Rational{0, 0}, false},
		{"abc", Rational{}, true},
		{"1/x", Rational{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRationalConversions(t *testing.T) {
	tb := Rational{1, 44100}
	if got := tb.Rescale(1.5); got != 66150 {
		t.Errorf("Expected 66150, got %d", got)
	}
	if got := tb.Seconds(88200); got != 2 {
		t.Errorf("Expected 2s, got %v", got)
	}
	if (Rational{0, 0}).Float() != 0 {
		t.Error("Expected zero denominator to give 0")
	}
	if (Rational{}).Rescale(1) != 0 {
		t.Error("Expected invalid rational to rescale to 0")
	}
	if (Rational{30000, 1001}).String() != "30000/1001" {
		t.Error("Unexpected String()")
	}
}

func TestRequiresGlobalHeader(t *testing.T) {
	tests := map[string]bool{
		"out.mp4":   true,
		"OUT.MOV":   true,
		"clip.m4v":  true,
		"phone.3gp": true,
		"phone.3g2": true,
		"out.mkv":   false,
		"out.webm":  false,
		"noext":     false,
	}
	for path, want := range tests {
		if got := RequiresGlobalHeader(path); got != want {
			t.Errorf("RequiresGlobalHeader(%q): expected %v, got %v", path, want, got)
		}
	}
}

func TestContainerStreams(t *testing.T) {
	info := &ContainerInfo{Streams: []StreamInfo{
		{Index: 0, Kind: StreamOther},
		{Index: 1, Kind: StreamAudio, SampleRate: 48000},
		{Index: 2, Kind: StreamVideo, Width: 1920},
		{Index: 3, Kind: StreamVideo, Width: 640},
	}}
	v, ok := info.Video()
	if !ok || v.Index != 2 {
		t.Errorf("Expected first video stream (index 2), got %+v", v)
	}
	a, ok := info.Audio()
	if !ok || a.SampleRate != 48000 {
		t.Errorf("Expected audio stream, got %+v", a)
	}
	if _, ok := (&ContainerInfo{}).Audio(); ok {
		t.Error("Expected no audio stream")
	}
}

func TestRawFrameResetReuses(t *testing.T) {
	f := &RawFrame{Data: make([]byte, 0, 100)}
	before := &f.Data[:1][0]
	f.Reset(8, 4, 48)
	if len(f.Data) != 48 || &f.Data[0] != before {
		t.Error("Expected Reset to reuse capacity")
	}
	f.Reset(16, 16, 384)
	if len(f.Data) != 384 || f.Width != 16 || f.Format != "yuv420p" {
		t.Errorf("Unexpected frame after grow: %dx%d len %d", f.Width, f.Height, len(f.Data))
	}

	c := f.Clone()
	c.Data[0] = 9
	if f.Data[0] == 9 {
		t.Error("Expected Clone to deep copy")
	}
}

func TestAudioOptionsDefaults(t *testing.T) {
	o := AudioOptions{Start: -1}.WithDefaults()
	if o.SampleRate != SampleRate || o.Channels != Channels || o.Start != 0 {
		t.Errorf("Unexpected defaults: %+v", o)
	}
}
