package render

import (
	"testing"

	"github.com/seckatie/urlhealth/internal/core"
)

func TestLogoFor(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Resource
	}{
		{
			name: "host",
			url:  "https://www.example.com/path",
			want: Resource{Primary: "https://logo.clearbit.com/www.example.com", Fallback: core.DefaultLogoPath},
		},
		{
			name: "unparsable",
			url:  "://nope",
			want: Resource{Fallback: core.DefaultLogoPath},
		},
		{
			name: "empty",
			url:  "",
			want: Resource{Fallback: core.DefaultLogoPath},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LogoFor(tt.url, nil); got != tt.want {
				t.Errorf("LogoFor(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestLogoFor_CustomLocation(t *testing.T) {
	got := LogoFor("http://example.com:8080", func(host string) string { return "/logo/" + host })
	if got.Primary != "/logo/example.com" {
		t.Errorf("Primary = %q, want /logo/example.com", got.Primary)
	}
}

func TestResource_Src(t *testing.T) {
	if got := (Resource{Primary: "https://logo.example/a.png", Fallback: core.DefaultLogoPath}).Src(); got != "https://logo.example/a.png" {
		t.Errorf("Src() = %q, want primary", got)
	}
	if got := (Resource{Fallback: core.DefaultLogoPath}).Src(); got != core.DefaultLogoPath {
		t.Errorf("Src() = %q, want fallback", got)
	}
}
