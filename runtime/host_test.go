package runtime

import (
	"reflect"
	"testing"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
)

func TestToKebabCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Add", "add"},
		{"GetValue", "get-value"},
		{"GetHTTPURL", "get-http-url"},
		{"HTTPServer", "http-server"},
		{"ParseJSON", "parse-json"},
		{"already", "already"},
	}
	for _, tt := range tests {
		if got := toKebabCase(tt.in); got != tt.want {
			t.Errorf("toKebabCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type explicitHost struct{}

func (explicitHost) Namespace() string { return "explicit" }

func (explicitHost) Register() map[string]any {
	return map[string]any{
		"[method]fields.append": func(a, b string) string { return a + b },
		"raw": func(cx *bridge.CallContext) (engine.Handle, error) {
			return cx.Null()
		},
	}
}

type emptyHost struct{}

func (emptyHost) Namespace() string { return "" }

type badGuestHost struct{}

func (badGuestHost) Namespace() string        { return "bad" }
func (badGuestHost) GuestFunctions() []string { return []string{"missing"} }
func (badGuestHost) Present() int             { return 1 }

type badSignatureHost struct{}

func (badSignatureHost) Namespace() string       { return "bad" }
func (badSignatureHost) Triple() (int, int, int) { return 1, 2, 3 }

func TestHostRegistry_RegisterHost(t *testing.T) {
	r := NewHostRegistry()
	if err := r.RegisterHost(explicitHost{}); err != nil {
		t.Fatalf("explicit host: %v", err)
	}
	if got, want := r.Functions("explicit"), []string{"[method]fields.append", "raw"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Functions = %v, want %v", got, want)
	}

	tests := []struct {
		host Host
		name string
	}{
		{emptyHost{}, "empty namespace"},
		{badGuestHost{}, "unknown guest function"},
		{badSignatureHost{}, "three results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.RegisterHost(tt.host); err == nil {
				t.Error("expected error")
			}
		})
	}
	if got := r.Namespaces(); !reflect.DeepEqual(got, []string{"explicit"}) {
		t.Errorf("failed registrations leaked namespaces: %v", got)
	}
}

func TestHostRegistry_RegisterFunc(t *testing.T) {
	r := NewHostRegistry()

	tests := []struct {
		fn      any
		ns      string
		name    string
		guest   bool
		wantErr bool
	}{
		{func(a float64) float64 { return a }, "ns", "id", false, false},
		{func(a float64) float64 { return a }, "ns", "gid", true, false},
		{bridge.Function(func(cx *bridge.CallContext) (engine.Handle, error) { return cx.Null() }), "ns", "native", false, false},
		{bridge.Function(func(cx *bridge.CallContext) (engine.Handle, error) { return cx.Null() }), "ns", "native-guest", true, true},
		{42, "ns", "number", false, true},
		{func(...int) {}, "ns", "variadic", false, true},
		{func() (int, int) { return 0, 0 }, "ns", "no-error", false, true},
		{func() {}, "", "x", false, true},
		{func() {}, "ns", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.guest {
				err = r.RegisterGuestFunc(tt.ns, tt.name, tt.fn)
			} else {
				err = r.RegisterFunc(tt.ns, tt.name, tt.fn)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if got, want := r.Functions("ns"), []string{"gid", "id", "native"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Functions = %v, want %v", got, want)
	}
}
