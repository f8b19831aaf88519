package logutil

import "testing"

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{}, true},
		{"text debug", Config{Level: "debug", Format: "text"}, true},
		{"json warn", Config{Level: "warning", Format: "json"}, true},
		{"add source", Config{Level: "error", AddSource: true}, true},
		{"bad level", Config{Level: "verbose"}, false},
		{"bad format", Config{Format: "xml"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tc.cfg)
			if tc.ok != (err == nil) {
				t.Fatalf("New(%+v) error = %v, want ok=%v", tc.cfg, err, tc.ok)
			}
			if tc.ok && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}
