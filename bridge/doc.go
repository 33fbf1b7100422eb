// Package bridge is the safety layer between native Go code and objects on
// an engine isolate.
//
// Three disciplines are enforced:
//
//   - Scopes. With enters a handle scope and exits it on every path out of
//     the callback. Handles created in a scope fail to resolve once it has
//     exited, and scopes must exit in strict reverse order of entry.
//   - Loans. VM buffers live in wazero linear memory and can be viewed as
//     Go byte slices without copying. A guard root (VM.Lock) issues shared
//     (Ref) and exclusive (RefMut) loans through a per-isolate ledger; a
//     conflicting request fails immediately with a Mutating or Frozen
//     error instead of blocking.
//   - Contexts. ModuleContext, CallContext and the task completion context
//     each own exactly one scope and embed VM, which carries every
//     capability: value construction, property access, calls, exceptions,
//     roots and guards.
//
// A native function returns (Handle, error). Returning errors.ErrThrow
// propagates a pending exception; any other error is thrown as a VM error
// object when the function returns.
package bridge
