package runtime

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace and GuestFunctions) become
// functions of a bridge module named by Namespace.
type Host interface {
	Namespace() string
}

// GuestHost extends Host with functions that wasm guests may also import
// from the bridge host module. Guest functions take and return numbers.
type GuestHost interface {
	Host
	GuestFunctions() []string
}

// ExplicitRegistrar allows hosts to provide exact function names when
// automatic PascalCase-to-kebab-case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

type HostRegistry struct {
	funcs map[string]map[string]*HostFunc
	mu    sync.RWMutex
}

type HostFunc struct {
	Handler any
	sig     *signature
	Guest   bool
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]*HostFunc),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	guestFuncs := make(map[string]bool)
	if gh, ok := h.(GuestHost); ok {
		for _, name := range gh.GuestFunctions() {
			guestFuncs[name] = true
		}
	}

	handlers := make(map[string]any)
	if er, ok := h.(ExplicitRegistrar); ok {
		handlers = er.Register()
	} else {
		rv := reflect.ValueOf(h)
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			method := rt.Method(i)
			if !method.IsExported() || method.Name == "Namespace" || method.Name == "GuestFunctions" {
				continue
			}
			handlers[toKebabCase(method.Name)] = rv.Method(i).Interface()
		}
	}

	funcs := make(map[string]*HostFunc, len(handlers))
	for name, handler := range handlers {
		hf, err := newHostFunc(handler, guestFuncs[name])
		if err != nil {
			return errors.Registration(errors.PhaseHost, ns, name, err)
		}
		funcs[name] = hf
	}
	for name := range guestFuncs {
		if _, ok := funcs[name]; !ok {
			return errors.NotFound(errors.PhaseHost, "guest function", ns+"#"+name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs[ns] == nil {
		r.funcs[ns] = make(map[string]*HostFunc)
	}
	for name, hf := range funcs {
		r.funcs[ns][name] = hf
	}
	return nil
}

func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	return r.register(namespace, name, fn, false)
}

// RegisterGuestFunc registers a single function that guests may import.
func (r *HostRegistry) RegisterGuestFunc(namespace, name string, fn any) error {
	return r.register(namespace, name, fn, true)
}

func (r *HostRegistry) register(namespace, name string, fn any, guest bool) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	hf, err := newHostFunc(fn, guest)
	if err != nil {
		return errors.Registration(errors.PhaseHost, namespace, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]*HostFunc)
	}
	r.funcs[namespace][name] = hf
	return nil
}

func newHostFunc(handler any, guest bool) (*HostFunc, error) {
	sig, err := newSignature(handler)
	if err != nil {
		return nil, err
	}
	if guest && sig.arity() < 0 {
		return nil, errors.InvalidInput(errors.PhaseHost, "guest functions need a typed handler")
	}
	return &HostFunc{Handler: handler, sig: sig, Guest: guest}, nil
}

// Namespaces returns the registered namespaces in sorted order.
func (r *HostRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Functions returns the function names of namespace in sorted order.
func (r *HostRegistry) Functions(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs[namespace]))
	for name := range r.funcs[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind initializes one bridge module per namespace on iso.
func (r *HostRegistry) Bind(ctx context.Context, iso *engine.Isolate) error {
	for _, ns := range r.Namespaces() {
		names := r.Functions(ns)
		r.mu.RLock()
		funcs := r.funcs[ns]
		r.mu.RUnlock()

		err := bridge.InitModule(ctx, iso, ns, func(mc *bridge.ModuleContext) error {
			for _, name := range names {
				hf := funcs[name]
				var err error
				if hf.Guest {
					err = mc.ExportGuestFunction(name, hf.sig.arity(), hf.sig.function())
				} else {
					err = mc.ExportFunction(name, hf.sig.function())
				}
				if err != nil {
					return errors.Registration(errors.PhaseHost, ns, name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// toKebabCase converts PascalCase to kebab-case.
// Handles acronyms: GetHTTPURL -> get-http-url
func toKebabCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
